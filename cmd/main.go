// A small end-to-end demo: a bounded worker pipeline with retries, a
// deadline over the whole run, and structured logging for anything that
// escapes observation.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/strandlib/strand"
	"github.com/strandlib/strand/channel"
)

func fetch(ctx context.Context, id int) (string, error) {
	if err := strand.Delay(ctx, time.Duration(rand.IntN(20))*time.Millisecond); err != nil {
		return "", err
	}
	if rand.IntN(3) == 0 {
		return "", fmt.Errorf("fetch %d: connection reset", id)
	}
	return fmt.Sprintf("payload-%d", id), nil
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	strand.SetLogger(logger)

	work := channel.New[int](8)
	results := channel.NewUnbounded[string]()

	err := strand.WithTimeout(context.Background(), 2*time.Second,
		func(ctx context.Context, s *strand.Scope) error {
			s.Launch("feeder", func(ctx context.Context) error {
				defer work.Close(nil)
				for id := 1; id <= 20; id++ {
					if err := work.Send(ctx, id); err != nil {
						return err
					}
				}
				return nil
			})

			for w := range 4 {
				s.Launch(fmt.Sprintf("worker-%d", w), func(ctx context.Context) error {
					for id := range work.Range(ctx) {
						payload, err := retryFetch(ctx, id)
						if err != nil {
							return err
						}
						if err := results.Send(ctx, payload); err != nil {
							return err
						}
					}
					return nil
				})
			}
			return nil
		})

	results.Close(nil)
	if err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		os.Exit(1)
	}

	count := 0
	for range results.Range(context.Background()) {
		count++
	}
	logger.Info("pipeline finished", zap.Int("results", count))
}

func retryFetch(ctx context.Context, id int) (string, error) {
	var payload string
	err := strand.Retry(ctx, 4, 5*time.Millisecond, func(ctx context.Context) error {
		var err error
		payload, err = fetch(ctx, id)
		return err
	})
	return payload, err
}
