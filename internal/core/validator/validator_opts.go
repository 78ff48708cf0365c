package validator

import (
	"time"

	"github.com/rs/zerolog"
)

// Option adjusts a Validator at construction time.
type Option func(*Validator)

// WithSampler wires a content sampler feeding the analyzer's input.
func WithSampler(s ContentSampler) Option {
	return func(v *Validator) { v.sampler = s }
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(v *Validator) { v.log = log }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithIDSource overrides the run-ID generator.
func WithIDSource(f func() string) Option {
	return func(v *Validator) { v.newID = f }
}
