package request

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"
)

// WaitGroupConcurrencyLimit is the default maximum number of concurrent requests in one WaitGroup.
const WaitGroupConcurrencyLimit = 8

// WaitGroup sends each request immediately on the Send call, concurrently with the others.
// An error doesn't stop other requests, Wait returns all errors.
//
// Use RunGroup to postpone sending or to stop at the first error.
type WaitGroup struct {
	ctx   context.Context
	wg    *sync.WaitGroup
	limit *semaphore.Weighted

	lock *sync.Mutex
	errs *multierror.Error
}

// NewWaitGroup creates a WaitGroup with the WaitGroupConcurrencyLimit.
func NewWaitGroup(ctx context.Context) *WaitGroup {
	return NewWaitGroupWithLimit(ctx, WaitGroupConcurrencyLimit)
}

// NewWaitGroupWithLimit creates a WaitGroup sending at most limit requests at once.
func NewWaitGroupWithLimit(ctx context.Context, limit int64) *WaitGroup {
	return &WaitGroup{ctx: ctx, wg: &sync.WaitGroup{}, limit: semaphore.NewWeighted(limit), lock: &sync.Mutex{}}
}

// Send starts the request in a new goroutine.
func (g *WaitGroup) Send(r Sendable) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := sendLimited(g.ctx, g.limit, r); err != nil {
			g.addErr(err)
		}
	}()
}

// SendFunc starts the function in a new goroutine, see Send.
func (g *WaitGroup) SendFunc(fn func(ctx context.Context) error) {
	g.Send(SendableFunc(fn))
}

// Wait blocks until all requests are completed.
// A single error is returned as is, more errors are returned as *multierror.Error.
func (g *WaitGroup) Wait() error {
	g.wg.Wait()
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.errs != nil && len(g.errs.Errors) == 1 {
		return g.errs.Errors[0]
	}
	return g.errs.ErrorOrNil()
}

func (g *WaitGroup) addErr(err error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.errs = multierror.Append(g.errs, err)
}
