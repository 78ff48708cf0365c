package extract

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/session"
)

type Option func(*Extractor)

// WithSessionStore persists login cookies across runs. A nil store leaves
// every extraction stateless.
func WithSessionStore(s *session.Store) Option {
	return func(e *Extractor) { e.store = s }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Extractor) { e.log = log }
}

// WithClock fixes the age computation for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}
