package queue

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newRetryBackOff yields min(base*2^(k-1), maxDelay) on its k-th call, with no jitter.
func newRetryBackOff(base, maxDelay time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.MaxInterval = maxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}
