package strand

import (
	"context"
	"fmt"
	"time"
)

// ForEach executes fn for each item in the slice concurrently inside a
// fresh scope, waiting for all launches to finish.
//
//	err := strand.ForEach(ctx, urls, func(ctx context.Context, u string) error {
//	    return fetch(ctx, u)
//	}, strand.WithConcurrencyLimit(10))
func ForEach[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) error, opts ...ScopeOption) error {
	s := NewScope(ctx, opts...)
	for i, item := range items {
		s.Launch(fmt.Sprintf("foreach[%d]", i), func(ctx context.Context) error {
			return fn(ctx, item)
		})
	}
	return s.Wait(ctx)
}

// Map executes fn for each item concurrently and collects the results in
// the same order as the input slice. The first failure cancels the
// remaining launches and is returned; on success the results slice is
// complete.
//
//	prices, err := strand.Map(ctx, products, func(ctx context.Context, p Product) (float64, error) {
//	    return fetchPrice(ctx, p)
//	}, strand.WithConcurrencyLimit(5))
func Map[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error), opts ...ScopeOption) ([]R, error) {
	results := make([]R, len(items))
	s := NewScope(ctx, opts...)
	for i, item := range items {
		s.Launch(fmt.Sprintf("map[%d]", i), func(ctx context.Context) error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r // safe: each launch writes a unique index
			return nil
		})
	}
	if err := s.Wait(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// Retry runs fn up to attempts times, suspending for backoff between
// attempts. It returns nil on the first success, the last attempt's error
// after exhausting attempts, or ctx's cause if cancelled mid-backoff.
// Panics if attempts < 1.
//
//	err := strand.Retry(ctx, 5, 100*time.Millisecond, func(ctx context.Context) error {
//	    return callFlakyService(ctx)
//	})
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		panic("strand: Retry requires attempts >= 1")
	}
	var err error
	for i := range attempts {
		if i > 0 {
			if derr := Delay(ctx, backoff); derr != nil {
				return derr
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if IsCancellation(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}
