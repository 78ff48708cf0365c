package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/logger"
)

const anthropicVersion = "2023-06-01"

// Anthropic talks to a messages-style endpoint. It doubles as the
// secondary provider in the deepseek fallback chain.
type Anthropic struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

func NewAnthropic(baseURL, model, apiKey string, timeout time.Duration) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic api key missing", ErrInvalidConfig)
	}
	return &Anthropic{
		baseURL: withDefault(baseURL, "https://api.anthropic.com"),
		model:   withDefault(model, "claude-sonnet-4-20250514"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: clientTimeout(timeout)},
		log:     logger.WithComponent("analysis/anthropic"),
	}, nil
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Analyze implements validator.ContentAnalyzer.
func (a *Anthropic) Analyze(ctx context.Context, accountID, summary string) (validator.Analysis, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     a.model,
		MaxTokens: 512,
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: userPrompt(accountID, summary)}},
	})
	if err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return validator.Analysis{}, fmt.Errorf("%w: anthropic status %d", validator.ErrTransient, resp.StatusCode)
	}

	var payload messagesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: decode anthropic reply: %v", validator.ErrTransient, err)
	}

	var text string
	for _, block := range payload.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return validator.Analysis{}, fmt.Errorf("%w: anthropic reply has no text block", validator.ErrTransient)
	}

	an, err := parseVerdict(text)
	if err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	a.log.Debug().Str("account", accountID).Int("viability", an.Viability).Msg("Analysis complete")
	return an, nil
}
