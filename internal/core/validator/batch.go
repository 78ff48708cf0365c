package validator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem pairs a request with its outcome. Err is only set for the
// fatal conditions Validate itself returns; degraded evidence is a normal
// Result, not an item error.
type BatchItem struct {
	Request Request
	Result  Result
	Err     error
}

// Batch validates many requests with bounded concurrency, preserving input
// order in the returned slice. One item's fatal error never cancels its
// siblings; cancelling ctx stops everything.
func (v *Validator) Batch(ctx context.Context, reqs []Request, concurrency int) []BatchItem {
	if concurrency < 1 {
		concurrency = 1
	}
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := v.Validate(gctx, req)
			items[i] = BatchItem{Request: req, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}
