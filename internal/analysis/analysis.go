// Package analysis adapts hosted AI providers to the content-analysis
// stage. Provider errors are transient; only construction can fail hard.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
)

// ErrInvalidConfig reports an unusable provider configuration: an unknown
// provider name or a missing API key.
var ErrInvalidConfig = errors.New("analysis: invalid config")

// New selects the provider by name. "deepseek" optionally wraps a
// secondary messages-API provider in a fallback chain when secondary
// settings are present.
func New(conf types.AIConf) (validator.ContentAnalyzer, error) {
	timeout := conf.Timeout()
	switch strings.ToLower(conf.Provider) {
	case "", "mock":
		return NewMock(), nil
	case "deepseek":
		primary, err := NewDeepSeek(conf.BaseURL, conf.Model, conf.APIKey, timeout)
		if err != nil {
			return nil, err
		}
		if conf.SecondaryAPIKey == "" && conf.SecondaryURL == "" && conf.SecondaryModel == "" {
			return primary, nil
		}
		secondary, err := NewAnthropic(conf.SecondaryURL, conf.SecondaryModel, conf.SecondaryAPIKey, timeout)
		if err != nil {
			return nil, err
		}
		return NewFallback(primary, secondary), nil
	case "anthropic", "claude":
		return NewAnthropic(conf.BaseURL, conf.Model, conf.APIKey, timeout)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, conf.Provider)
	}
}

const systemPrompt = `You assess the authenticity and operational viability of social media personas. Reply with a single JSON object: {"viability_score": <1-100>, "tags": ["..."], "notes": "..."}. Put best use cases in tags and prefix each risk factor tag with "risk:".`

func userPrompt(accountID, summary string) string {
	return fmt.Sprintf("Account: %s\nRecent activity:\n%s", accountID, summary)
}

// verdict is the JSON shape the prompt requests from every provider.
type verdict struct {
	ViabilityScore float64  `json:"viability_score"`
	Tags           []string `json:"tags"`
	Notes          string   `json:"notes"`
}

// parseVerdict extracts the verdict from a model reply. Models sometimes
// wrap the JSON in prose, so it takes the outermost brace pair instead of
// decoding the raw string.
func parseVerdict(raw string) (validator.Analysis, error) {
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return validator.Analysis{}, fmt.Errorf("no JSON object in model reply")
	}
	var v verdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return validator.Analysis{}, fmt.Errorf("decode model reply: %w", err)
	}
	score := int(math.Round(v.ViabilityScore))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return validator.Analysis{Viability: score, Tags: v.Tags, Notes: v.Notes}, nil
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clientTimeout(t time.Duration) time.Duration {
	if t <= 0 {
		return 30 * time.Second
	}
	return t
}
