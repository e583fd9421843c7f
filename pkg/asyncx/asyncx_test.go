package asyncx_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/axonlabs/axongate/pkg/asyncx"
)

// --- Future tests ---

func TestFuture_AwaitReturnsResult(t *testing.T) {
	f := asyncx.Run(func() (int, error) { return 42, nil })

	v, err := f.Await()
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestFuture_AwaitCachesResult(t *testing.T) {
	var calls int32
	f := asyncx.Run(func() (int, error) {
		atomic.AddInt32(&calls, 1)
		return 7, nil
	})

	for i := 0; i < 3; i++ {
		if v, _ := f.Await(); v != 7 {
			t.Fatalf("await %d returned %d", i, v)
		}
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("fn ran %d times", calls)
	}
}

func TestFuture_AwaitPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	f := asyncx.Run(func() (string, error) { return "", boom })

	_, err := f.Await()
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
}

// --- Map tests ---

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{5, 3, 8, 1, 9, 2}

	out, err := asyncx.Map(context.Background(), 3, items, func(_ context.Context, n int) (int, error) {
		// Finish out of submission order.
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range items {
		if out[i] != n*10 {
			t.Fatalf("position %d holds %d, want %d", i, out[i], n*10)
		}
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32

	_, err := asyncx.Map(context.Background(), 2, make([]int, 20), func(context.Context, int) (int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("%d workers ran at once, want at most 2", p)
	}
}

func TestMap_FirstErrorCancelsTheRest(t *testing.T) {
	boom := errors.New("boom")

	// Every other item blocks until the failure cancels the shared context;
	// the test only finishes if that cancellation propagates.
	items := []int{1, 0, 0, 0}
	_, err := asyncx.Map(context.Background(), 4, items, func(ctx context.Context, n int) (int, error) {
		if n == 1 {
			return 0, boom
		}
		<-ctx.Done()
		return 0, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
}

func TestMap_EmptyInput(t *testing.T) {
	out, err := asyncx.Map(context.Background(), 4, []string(nil), func(_ context.Context, s string) (string, error) {
		return s, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %v", out)
	}
}
