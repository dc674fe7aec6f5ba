package request

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// RunGroupConcurrencyLimit is the default maximum number of concurrent requests in one RunGroup.
const RunGroupConcurrencyLimit = 32

// RunGroup schedules requests by the Add method and sends them concurrently on the RunAndWait call.
//
// Sending stops at the first error, the context of the remaining requests is cancelled
// and the error is returned from RunAndWait.
//
// Use WaitGroup to send requests immediately or to collect all errors.
type RunGroup struct {
	ctx     context.Context
	started chan struct{}
	group   *errgroup.Group
	limit   *semaphore.Weighted
}

// NewRunGroup creates a RunGroup with the RunGroupConcurrencyLimit.
func NewRunGroup(ctx context.Context) *RunGroup {
	return RunGroupWithLimit(ctx, RunGroupConcurrencyLimit)
}

// RunGroupWithLimit creates a RunGroup sending at most limit requests at once.
func RunGroupWithLimit(ctx context.Context, limit int64) *RunGroup {
	group, ctx := errgroup.WithContext(ctx)
	return &RunGroup{ctx: ctx, started: make(chan struct{}), group: group, limit: semaphore.NewWeighted(limit)}
}

// Add schedules the request.
// It may be called during RunAndWait, for example from an AfterSending callback, to send a follow-up request.
func (g *RunGroup) Add(r Sendable) {
	g.group.Go(func() error {
		<-g.started
		return sendLimited(g.ctx, g.limit, r)
	})
}

// AddFunc schedules the function, see Add.
func (g *RunGroup) AddFunc(fn func(ctx context.Context) error) {
	g.Add(SendableFunc(fn))
}

// RunAndWait starts sending and waits until all requests, including those added later, are completed.
// It must be called only once.
func (g *RunGroup) RunAndWait() error {
	close(g.started)
	return g.group.Wait()
}

// sendLimited sends the request when the semaphore is acquired, or returns the context error.
func sendLimited(ctx context.Context, limit *semaphore.Weighted, r Sendable) error {
	if err := limit.Acquire(ctx, 1); err != nil {
		return err
	}
	defer limit.Release(1)
	return r.SendOrErr(ctx)
}
