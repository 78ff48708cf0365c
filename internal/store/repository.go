// Package store persists finished validation results. The pipeline itself
// never touches it; the CLI consults it for cached verdicts and records
// each run after the fact.
package store

import (
	"context"
	"time"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
)

// Repository is the persistence seam for validation results.
type Repository interface {
	// Init creates the schema when it does not exist yet.
	Init(ctx context.Context) error

	// Save records one finished run.
	Save(ctx context.Context, res validator.Result) error

	// Cached returns the newest result for an account no older than maxAge,
	// or nil when there is none.
	Cached(ctx context.Context, accountID string, maxAge time.Duration) (*validator.Result, error)

	// Recent lists the latest results, newest first.
	Recent(ctx context.Context, limit int) ([]validator.Result, error)

	Close()
}
