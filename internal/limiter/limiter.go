package limiter

import "context"

// Limiter bounds the number of concurrently in-flight calls for one call
// class. One instance is created per class (embeddings, summaries, cluster
// tasks) at process start and shared by all tasks of that class.
type Limiter struct {
	slots chan struct{}
}

// New returns a Limiter with the given maximum concurrency. max must be >= 1.
func New(max int) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired with Acquire.
func (l *Limiter) Release() {
	<-l.slots
}

// Do runs fn while holding a slot. The slot is released on every exit path,
// including panics inside fn.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Cap reports the configured maximum concurrency.
func (l *Limiter) Cap() int { return cap(l.slots) }
