package validator

import (
	"context"
	"math"
	"time"

	"github.com/YourlocalJay/reddit-persona-validator/proxypool"
)

// retryMachine tracks one extraction's attempt state: how many tries are
// left, which proxy the next try uses, and the growing backoff. Keeping it
// explicit lets cancellation and timeouts interrupt at any point.
type retryMachine struct {
	max     int
	factor  float64
	attempt int
	entry   *proxypool.Entry
}

func newRetryMachine(max int, factor float64, entry *proxypool.Entry) *retryMachine {
	return &retryMachine{max: max, factor: factor, entry: entry}
}

// begin opens the next attempt, returning false once attempts are spent.
func (r *retryMachine) begin() bool {
	if r.attempt >= r.max {
		return false
	}
	r.attempt++
	return true
}

func (r *retryMachine) exhausted() bool {
	return r.attempt >= r.max
}

// backoff is the sleep before the following attempt: factor^attempt seconds.
func (r *retryMachine) backoff() time.Duration {
	return time.Duration(math.Pow(r.factor, float64(r.attempt)) * float64(time.Second))
}

// rotate swaps in a fresh entry for the next attempt when the pool can
// provide one. When it cannot, the current entry is kept; exhaustion
// mid-retry is not fatal the way it is at acquisition.
func (r *retryMachine) rotate(pool *proxypool.Pool) {
	if pool == nil || r.entry == nil {
		return
	}
	if e, err := pool.Next(); err == nil {
		r.entry = e
	}
}

// sleepCtx waits for d or for ctx, whichever ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
