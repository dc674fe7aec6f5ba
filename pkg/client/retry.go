package client

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// RetriesCount is the default maximum number of retries of one request.
	RetriesCount = 5
	// RequestTimeout is the default timeout of one request, including all retries.
	RequestTimeout = 30 * time.Second
	// RetryWaitTimeStart is the default delay before the first retry.
	RetryWaitTimeStart = 100 * time.Millisecond
	// RetryWaitTimeMax is the default maximum delay between retries.
	RetryWaitTimeMax = 3 * time.Second
)

// RetryableStatusCodes are retried by the DefaultRetryCondition.
var RetryableStatusCodes = []int{ //nolint:gochecknoglobals
	http.StatusRequestTimeout,
	http.StatusConflict,
	http.StatusLocked,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// RetryConfig configures Client retries.
// A nil Condition disables retries.
type RetryConfig struct {
	Condition           RetryCondition
	Count               int
	TotalRequestTimeout time.Duration
	WaitTimeStart       time.Duration
	WaitTimeMax         time.Duration
}

// RetryCondition returns true if the request attempt should be retried.
// The response is nil on a network error.
type RetryCondition func(*http.Response, error) bool

// DefaultRetry returns the RetryConfig used by New.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		Condition:           DefaultRetryCondition(),
		Count:               RetriesCount,
		TotalRequestTimeout: RequestTimeout,
		WaitTimeStart:       RetryWaitTimeStart,
		WaitTimeMax:         RetryWaitTimeMax,
	}
}

// TestingRetry returns DefaultRetry with short delays, for tests.
func TestingRetry() RetryConfig {
	v := DefaultRetry()
	v.WaitTimeStart = time.Millisecond
	v.WaitTimeMax = time.Millisecond
	return v
}

// DefaultRetryCondition retries network errors, except unknown hosts, and RetryableStatusCodes.
func DefaultRetryCondition() RetryCondition {
	return func(response *http.Response, err error) bool {
		if response == nil || response.StatusCode == 0 {
			return err != nil && !isHostNotFound(err)
		}
		return slices.Contains(RetryableStatusCodes, response.StatusCode)
	}
}

// RetryOnStatus retries only responses with one of the status codes, network errors are not retried.
func RetryOnStatus(codes ...int) RetryCondition {
	return func(response *http.Response, _ error) bool {
		return response != nil && slices.Contains(codes, response.StatusCode)
	}
}

// NewBackoff returns an exponential backoff without randomization, delays double up to WaitTimeMax.
func (c RetryConfig) NewBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.WaitTimeStart
	b.MaxInterval = c.WaitTimeMax
	b.MaxElapsedTime = c.TotalRequestTimeout
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

func isHostNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No address associated with hostname") || strings.Contains(msg, "no such host")
}
