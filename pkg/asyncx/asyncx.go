// Package asyncx provides small typed concurrency helpers: futures for
// fan-out calls and a bounded parallel map.
package asyncx

import (
	"context"
	"sync"
)

type result[T any] struct {
	value T
	err   error
}

// Future is a value that becomes available asynchronously. Create one with
// Run and collect it with Await.
type Future[T any] struct {
	ch  chan result[T]
	res *result[T]
	mu  sync.Mutex
}

// Run executes fn in a goroutine and returns a Future for its result.
func Run[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{ch: make(chan result[T], 1)}
	go func() {
		v, err := fn()
		f.ch <- result[T]{value: v, err: err}
	}()
	return f
}

// Await blocks until the Future completes. Safe to call repeatedly; later
// calls return the cached result.
func (f *Future[T]) Await() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.res == nil {
		r := <-f.ch
		f.res = &r
	}
	return f.res.value, f.res.err
}

// Map runs fn over items with at most workers goroutines, preserving input
// order in the output. The first error cancels the remaining work through
// ctx and is returned.
func Map[In, Out any](ctx context.Context, workers int, items []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]Out, len(items))
	errs := make(chan error, len(items))
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i := range items {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()

				v, err := fn(ctx, items[i])
				if err != nil {
					errs <- err
					cancel()
					return
				}
				out[i] = v
			}(i)
		}
	}
	wg.Wait()

	select {
	case err := <-errs:
		return nil, err
	default:
		return out, nil
	}
}
