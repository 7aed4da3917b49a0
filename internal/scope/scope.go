// Package scope implements structured cancellation for delegate work: cancelling a
// Scope cancels every job launched in it.
package scope

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Scope owns a set of goroutines sharing one cancellation.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	once   sync.Once
}

// New returns a Scope whose jobs stop when parent is done or Cancel is called.
func New(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	return &Scope{ctx: gctx, cancel: cancel, group: g}
}

// Context returns the scope's context.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Launch runs fn in a child job. The job's context is cancelled when the scope is
// cancelled or the job itself is cancelled.
func (s *Scope) Launch(fn func(ctx context.Context)) *Job {
	ctx, cancel := context.WithCancel(s.ctx)
	j := &Job{cancel: cancel, done: make(chan struct{})}
	s.group.Go(func() error {
		defer close(j.done)
		defer cancel()
		fn(ctx)
		return nil
	})
	return j
}

// Cancel cancels the scope. It reports whether this call performed the cancellation;
// later calls are no-ops.
func (s *Scope) Cancel() bool {
	cancelled := false
	s.once.Do(func() {
		s.cancel()
		cancelled = true
	})
	return cancelled
}

// Wait blocks until every launched job has returned.
func (s *Scope) Wait() {
	_ = s.group.Wait()
}

// Job is a cancellable unit of work inside a Scope.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the job. Safe to call on a nil Job.
func (j *Job) Cancel() {
	if j == nil {
		return
	}
	j.cancel()
}

// Done is closed once the job has returned.
func (j *Job) Done() <-chan struct{} {
	return j.done
}
