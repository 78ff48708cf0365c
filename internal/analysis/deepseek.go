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

// DeepSeek talks to a chat-completions endpoint with a forced JSON
// response format.
type DeepSeek struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

func NewDeepSeek(baseURL, model, apiKey string, timeout time.Duration) (*DeepSeek, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: deepseek api key missing", ErrInvalidConfig)
	}
	return &DeepSeek{
		baseURL: withDefault(baseURL, "https://api.deepseek.com/v1"),
		model:   withDefault(model, "deepseek-chat"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: clientTimeout(timeout)},
		log:     logger.WithComponent("analysis/deepseek"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze implements validator.ContentAnalyzer.
func (d *DeepSeek) Analyze(ctx context.Context, accountID, summary string) (validator.Analysis, error) {
	body, err := json.Marshal(chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(accountID, summary)},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    0.3,
	})
	if err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return validator.Analysis{}, fmt.Errorf("%w: deepseek status %d", validator.ErrTransient, resp.StatusCode)
	}

	var payload chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: decode deepseek reply: %v", validator.ErrTransient, err)
	}
	if len(payload.Choices) == 0 {
		return validator.Analysis{}, fmt.Errorf("%w: deepseek reply has no choices", validator.ErrTransient)
	}

	an, err := parseVerdict(payload.Choices[0].Message.Content)
	if err != nil {
		return validator.Analysis{}, fmt.Errorf("%w: %v", validator.ErrTransient, err)
	}
	d.log.Debug().Str("account", accountID).Int("viability", an.Viability).Msg("Analysis complete")
	return an, nil
}
