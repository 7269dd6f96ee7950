package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// TextGenerator produces one assistant reply for a prompt. Implementations
// own their timeout policy; the interpreter only consumes the result.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	URL            string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

type completionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type completionResponse struct {
	Text string `json:"text"`
}

// HTTPTextGenerator calls an external completion endpoint.
type HTTPTextGenerator struct {
	client *resty.Client
	conf   Config
}

func NewHTTPTextGenerator(conf Config) *HTTPTextGenerator {
	timeout := 30 * time.Second
	if conf.TimeoutSeconds > 0 {
		timeout = time.Duration(conf.TimeoutSeconds) * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond)
	return &HTTPTextGenerator{client: client, conf: conf}
}

func (g *HTTPTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var out completionResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(g.conf.APIKey).
		SetBody(completionRequest{Model: g.conf.Model, Prompt: prompt}).
		SetResult(&out).
		Post(g.conf.URL)
	if err != nil {
		return "", fmt.Errorf("text generation call failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("text generation call returned status %d", resp.StatusCode())
	}
	return out.Text, nil
}
