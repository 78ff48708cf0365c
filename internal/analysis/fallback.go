package analysis

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
)

// Fallback chains two analyzers: a transient primary failure falls through
// to the secondary. Cancellation and non-transient errors do not.
type Fallback struct {
	primary   validator.ContentAnalyzer
	secondary validator.ContentAnalyzer
	log       zerolog.Logger
}

func NewFallback(primary, secondary validator.ContentAnalyzer) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		log:       logger.WithComponent("analysis/fallback"),
	}
}

// Analyze implements validator.ContentAnalyzer.
func (f *Fallback) Analyze(ctx context.Context, accountID, summary string) (validator.Analysis, error) {
	an, err := f.primary.Analyze(ctx, accountID, summary)
	if err == nil {
		return an, nil
	}
	if f.secondary == nil || ctx.Err() != nil || !errors.Is(err, validator.ErrTransient) {
		return validator.Analysis{}, err
	}
	f.log.Warn().Err(err).Str("account", accountID).Msg("Primary analyzer failed, falling back")
	return f.secondary.Analyze(ctx, accountID, summary)
}
