package probe

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the injectable retry configuration shared by every probe.
// Only transport-level failures (timeout, reset, refused connection) are
// retried; any response with a status code, 4xx/5xx included, is a result to
// record, never a reason to retry.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, first attempt included.
	MaxAttempts int

	// NewBackOff returns a fresh backoff schedule for one request.
	NewBackOff func() backoff.BackOff
}

// DefaultRetryPolicy retries twice after the first attempt with capped
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
	}
}

// NoRetryPolicy performs a single attempt.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 1,
		NewBackOff:  func() backoff.BackOff { return &backoff.StopBackOff{} },
	}
}

// backOff returns the schedule capped to the policy's attempt budget.
func (p RetryPolicy) backOff() backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var b backoff.BackOff
	if p.NewBackOff != nil {
		b = p.NewBackOff()
	} else {
		b = backoff.NewExponentialBackOff()
	}
	return backoff.WithMaxRetries(b, uint64(attempts-1))
}
