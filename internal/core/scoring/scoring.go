// Package scoring maps collected evidence to a trust score and tier. It is
// pure: no I/O, no clock, no shared state.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
)

// ErrInvalidConfig reports unusable weights, caps or thresholds.
var ErrInvalidConfig = errors.New("scoring: invalid config")

// Tier is the three-way classification derived from the numeric score.
type Tier string

const (
	TierSuspicious Tier = "suspicious"
	TierNeutral    Tier = "neutral"
	TierTrusted    Tier = "trusted"
)

// Weights holds the relative weight of each evidence signal. Weights of
// absent signals are redistributed proportionally among present ones, so
// they need not sum to 1.
type Weights struct {
	Age   float64
	Karma float64
	Email float64
	AI    float64
}

// Config is the scoring configuration snapshot carried by a validation
// request. Thresholds are configuration, not constants.
type Config struct {
	Weights         Weights
	AgeCapDays      int
	KarmaCap        int
	SuspiciousBelow int
	TrustedAt       int
}

// Default returns the balanced profile.
func Default() Config {
	return Config{
		Weights:         Weights{Age: 0.2, Karma: 0.15, Email: 0.3, AI: 0.35},
		AgeCapDays:      1095,
		KarmaCap:        50000,
		SuspiciousBelow: 40,
		TrustedAt:       75,
	}
}

// Profile resolves a named weight preset.
func Profile(name string) (Config, error) {
	switch strings.ToLower(name) {
	case "", "balanced":
		return Default(), nil
	case "strict":
		return Config{
			Weights:         Weights{Age: 0.15, Karma: 0.1, Email: 0.4, AI: 0.35},
			AgeCapDays:      1095,
			KarmaCap:        50000,
			SuspiciousBelow: 50,
			TrustedAt:       85,
		}, nil
	case "lenient":
		return Config{
			Weights:         Weights{Age: 0.25, Karma: 0.2, Email: 0.25, AI: 0.3},
			AgeCapDays:      730,
			KarmaCap:        25000,
			SuspiciousBelow: 30,
			TrustedAt:       65,
		}, nil
	default:
		return Config{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, name)
	}
}

// FromConf builds a Config from the ini section: the named profile first,
// then any explicitly set value on top. Negative values mean "keep the
// profile's value".
func FromConf(conf types.ScoringConf) (Config, error) {
	cfg, err := Profile(conf.Profile)
	if err != nil {
		return Config{}, err
	}
	if conf.AgeWeight >= 0 {
		cfg.Weights.Age = conf.AgeWeight
	}
	if conf.KarmaWeight >= 0 {
		cfg.Weights.Karma = conf.KarmaWeight
	}
	if conf.EmailWeight >= 0 {
		cfg.Weights.Email = conf.EmailWeight
	}
	if conf.AIWeight >= 0 {
		cfg.Weights.AI = conf.AIWeight
	}
	if conf.AgeCapDays >= 0 {
		cfg.AgeCapDays = conf.AgeCapDays
	}
	if conf.KarmaCap >= 0 {
		cfg.KarmaCap = conf.KarmaCap
	}
	if conf.SuspiciousBelow >= 0 {
		cfg.SuspiciousBelow = conf.SuspiciousBelow
	}
	if conf.TrustedAt >= 0 {
		cfg.TrustedAt = conf.TrustedAt
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the calculator cannot work with.
func (c Config) Validate() error {
	w := c.Weights
	if w.Age < 0 || w.Karma < 0 || w.Email < 0 || w.AI < 0 {
		return fmt.Errorf("%w: negative weight", ErrInvalidConfig)
	}
	if w.Age+w.Karma+w.Email+w.AI == 0 {
		return fmt.Errorf("%w: all weights are zero", ErrInvalidConfig)
	}
	if c.AgeCapDays < 1 || c.KarmaCap < 1 {
		return fmt.Errorf("%w: caps must be positive", ErrInvalidConfig)
	}
	if c.SuspiciousBelow < 0 || c.TrustedAt > 100 || c.SuspiciousBelow > c.TrustedAt {
		return fmt.Errorf("%w: thresholds out of order", ErrInvalidConfig)
	}
	return nil
}

// Signals are the evidence fields the calculator consumes. A nil field is
// an evidence gap: excluded from the weighted sum, with its weight spread
// proportionally over the present signals.
type Signals struct {
	AgeDays       *int
	Karma         *int
	EmailVerified *bool
	AIScore       *int
}

// Score normalizes the present signals, applies the weights and classifies
// the result. It cannot fail; with no signals at all the score is 0.
func Score(sig Signals, cfg Config) (int, Tier) {
	type part struct {
		norm   float64
		weight float64
	}
	var parts []part

	if sig.AgeDays != nil {
		parts = append(parts, part{capNorm(*sig.AgeDays, cfg.AgeCapDays), cfg.Weights.Age})
	}
	if sig.Karma != nil {
		parts = append(parts, part{capNorm(*sig.Karma, cfg.KarmaCap), cfg.Weights.Karma})
	}
	if sig.EmailVerified != nil {
		norm := 0.0
		if *sig.EmailVerified {
			norm = 1.0
		}
		parts = append(parts, part{norm, cfg.Weights.Email})
	}
	if sig.AIScore != nil {
		parts = append(parts, part{capNorm(*sig.AIScore, 100), cfg.Weights.AI})
	}

	var sum, total float64
	for _, p := range parts {
		sum += p.norm * p.weight
		total += p.weight
	}
	if total == 0 {
		return 0, cfg.Classify(0)
	}

	score := int(math.Round(sum / total * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, cfg.Classify(score)
}

// Classify maps a score to its tier using the configured thresholds.
func (c Config) Classify(score int) Tier {
	switch {
	case score < c.SuspiciousBelow:
		return TierSuspicious
	case score >= c.TrustedAt:
		return TierTrusted
	default:
		return TierNeutral
	}
}

func capNorm(v, limit int) float64 {
	if v <= 0 {
		return 0
	}
	if v >= limit {
		return 1
	}
	return float64(v) / float64(limit)
}
