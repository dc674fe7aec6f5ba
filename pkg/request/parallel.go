package request

import (
	"context"
)

// ParallelRequests sends all requests concurrently as one Sendable, for example as one item of a RunGroup.
type ParallelRequests []Sendable

// Parallel groups the requests.
func Parallel(requests ...Sendable) ParallelRequests {
	return requests
}

// SendOrErr sends the requests by a WaitGroup and waits for all of them, see WaitGroup.Wait.
func (v ParallelRequests) SendOrErr(ctx context.Context) error {
	wg := NewWaitGroup(ctx)
	for _, r := range v {
		wg.Send(r)
	}
	return wg.Wait()
}
