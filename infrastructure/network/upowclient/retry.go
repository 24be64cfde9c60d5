package upowclient

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// RetryPolicy bounds how often and how patiently a failing call to the
// challenge server is repeated.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts. Zero or less means one.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

// delay returns the wait before attempt number attempt+1.
func (p RetryPolicy) delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= multiplier
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return time.Duration(delay)
}

// Do calls f until it succeeds, returns a final error, the attempts are used
// up or ctx is done. The last error is returned wrapped in an
// ExternalIOError.
func (p RetryPolicy) Do(ctx context.Context, op string, f func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = f(ctx)
		if err == nil {
			return nil
		}
		if !retriable(err) || attempt == attempts-1 {
			break
		}

		delay := p.delay(attempt)
		log.Debugf("%s failed (attempt %d/%d), retrying in %s: %s", op, attempt+1, attempts, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return newExternalIOError(op, errors.Wrap(ctx.Err(), err.Error()))
		case <-timer.C:
		}
	}
	return newExternalIOError(op, err)
}
