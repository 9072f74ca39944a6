package terminal

import (
	"context"
	"sync"
)

// readiness resolves exactly once, either ready or failed.
type readiness struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newReadiness() *readiness {
	return &readiness{done: make(chan struct{})}
}

// resolve settles the signal. Later calls are ignored.
func (r *readiness) resolve(err error) bool {
	settled := false
	r.once.Do(func() {
		r.err = err
		close(r.done)
		settled = true
	})
	return settled
}

// Wait blocks until the signal settles or ctx ends.
func (r *readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *readiness) settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
