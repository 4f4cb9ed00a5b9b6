package strand_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/strandlib/strand"
)

// Side-by-side comparisons of the fan-out and fail-fast shapes against
// errgroup and raw goroutines. Run with:
//
//	go test -bench 'FanOut|FailFast' -benchmem

func BenchmarkFanOut_Native(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				var wg sync.WaitGroup
				for range n {
					wg.Add(1)
					go func() { wg.Done() }()
				}
				wg.Wait()
			}
		})
	}
}

func BenchmarkFanOut_Errgroup(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				g, _ := errgroup.WithContext(context.Background())
				for range n {
					g.Go(func() error { return nil })
				}
				_ = g.Wait()
			}
		})
	}
}

func BenchmarkFanOut_Strand(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = strand.Run(context.Background(), func(s *strand.Scope) {
					for range n {
						s.Launch("", func(ctx context.Context) error { return nil })
					}
				})
			}
		})
	}
}

func BenchmarkFailFast_Errgroup(b *testing.B) {
	errBoom := fmt.Errorf("boom")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g, ctx := errgroup.WithContext(context.Background())
		g.Go(func() error { return errBoom })
		for range 10 {
			g.Go(func() error {
				<-ctx.Done()
				return nil
			})
		}
		_ = g.Wait()
	}
}

func BenchmarkFailFast_Strand(b *testing.B) {
	errBoom := fmt.Errorf("boom")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = strand.Run(context.Background(), func(s *strand.Scope) {
			s.Launch("fail", func(ctx context.Context) error { return errBoom })
			for range 10 {
				s.Launch("wait", func(ctx context.Context) error {
					<-ctx.Done()
					return nil
				})
			}
		})
	}
}
