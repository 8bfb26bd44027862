package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterNeverExceedsCap(t *testing.T) {
	lim := New(3)
	var active, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lim.Do(context.Background(), func() error {
				cur := atomic.AddInt64(&active, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > 3 {
		t.Fatalf("observed %d concurrent tasks, cap is 3", got)
	}
}

func TestLimiterReleasesOnError(t *testing.T) {
	lim := New(1)
	wantErr := context.DeadlineExceeded
	if err := lim.Do(context.Background(), func() error { return wantErr }); err != wantErr {
		t.Fatalf("expected error passthrough, got %v", err)
	}
	// Slot must be free again.
	done := make(chan struct{})
	go func() {
		_ = lim.Do(context.Background(), func() error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("slot was not released after error")
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	lim := New(1)
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := lim.Acquire(ctx); err == nil {
		t.Fatal("expected context error when no slot is free")
	}
	lim.Release()
}

func TestNewClampsToOne(t *testing.T) {
	lim := New(0)
	if lim.Cap() != 1 {
		t.Fatalf("expected cap 1, got %d", lim.Cap())
	}
}
