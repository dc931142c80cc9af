// Package retry implements the exponential-backoff-with-full-jitter policy
// that wraps managed transactions (spec.md §4.10): delays d_k = min(d_max,
// d0*2^k) * U(0,1), bounded by a total-time budget.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
)

const (
	DefaultInitialDelay = time.Second
	DefaultMaxDelay      = 30 * time.Second
	DefaultMaxElapsed    = 30 * time.Second
)

// Policy configures the backoff sequence and total-time budget.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxElapsed   time.Duration

	// Rand lets tests supply a deterministic source; nil uses the package
	// default.
	Rand *rand.Rand
}

func DefaultPolicy() Policy {
	return Policy{InitialDelay: DefaultInitialDelay, MaxDelay: DefaultMaxDelay, MaxElapsed: DefaultMaxElapsed}
}

// Delay returns the jittered backoff for attempt k (0-indexed): the k-th
// retry waits Delay(k) before re-invoking the work.
func (p Policy) Delay(k int) time.Duration {
	base := float64(p.initialDelay())
	capped := math.Min(float64(p.maxDelay()), base*math.Pow(2, float64(k)))
	jitter := p.rand().Float64()
	return time.Duration(capped * jitter)
}

func (p Policy) initialDelay() time.Duration {
	if p.InitialDelay <= 0 {
		return DefaultInitialDelay
	}
	return p.InitialDelay
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay <= 0 {
		return DefaultMaxDelay
	}
	return p.MaxDelay
}

func (p Policy) maxElapsed() time.Duration {
	if p.MaxElapsed <= 0 {
		return DefaultMaxElapsed
	}
	return p.MaxElapsed
}

func (p Policy) rand() *rand.Rand {
	if p.Rand != nil {
		return p.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Work is the unit a retry policy re-invokes; it must be side-effect
// idempotent from the user's perspective (spec.md §4.9).
type Work func(ctx context.Context) (any, error)

// Run executes work, retrying on retryable errors until either it succeeds,
// a non-retryable error is returned, or the total-time budget is exhausted.
// For any non-retryable error the work runs exactly once (spec.md §8 "Retry
// laws").
func Run(ctx context.Context, policy Policy, work Work) (any, error) {
	deadline := time.Now().Add(policy.maxElapsed())
	for attempt := 0; ; attempt++ {
		result, err := work(ctx)
		if err == nil {
			return result, nil
		}
		ne, ok := neo4jerr.As(err)
		if !ok || !ne.IsRetryable() {
			return nil, err
		}
		delay := policy.Delay(attempt)
		if time.Now().Add(delay).After(deadline) {
			return nil, err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
