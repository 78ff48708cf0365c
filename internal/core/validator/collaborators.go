package validator

import (
	"context"

	"github.com/YourlocalJay/reddit-persona-validator/proxypool"
)

// AccountExtractor fetches account metadata through the given proxy entry
// (nil means a direct connection). It returns ErrNotFound for an account
// that does not exist and wraps ErrTransient for anything retryable.
type AccountExtractor interface {
	Extract(ctx context.Context, accountID string, via *proxypool.Entry) (AccountEvidence, error)
}

// EmailVerifier confirms ownership of the linked mailbox. Failures wrap
// ErrTransient; they degrade the evidence, never the run.
type EmailVerifier interface {
	Verify(ctx context.Context, address, accountID string, via *proxypool.Entry) (bool, error)
}

// ContentAnalyzer scores content viability 0-100 with qualitative tags.
// Which provider answers is a configuration choice, not the
// orchestrator's.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, accountID, summary string) (Analysis, error)
}

// ContentSampler gathers a short digest of the account's recent public
// content for the analyzer. Optional; a sampling failure only costs the
// analyzer its input quality, it is not an evidence error.
type ContentSampler interface {
	Sample(ctx context.Context, accountID string, via *proxypool.Entry) (string, error)
}
