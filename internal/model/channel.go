// ABOUTME: Secondary model channel: OpenAI-compatible chat completions, whole or token-streamed
// ABOUTME: Calls are rate limited with x/time/rate; streamed responses are parsed with the sse splitter

package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	xhttp "github.com/bigduu/copilot-client-app-sub002/internal/http"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/sse"
)

const chatCompletionPath = "/v1/chat/completions"

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System and User build messages for the common roles.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Channel is the secondary model used for argument extraction and result
// narration. Stream delivers tokens in order and returns the full text.
type Channel interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
	Stream(ctx context.Context, msgs []Message, onToken func(string)) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// RateLimit is the sustained request rate per second; zero disables limiting.
	RateLimit  float64
	Burst      int
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	rest    *xhttp.Client
	model   string
	limiter *rate.Limiter
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	opts := []xhttp.ClientOption{}
	if cfg.APIKey != "" {
		opts = append(opts, xhttp.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, xhttp.WithHTTPClient(cfg.HTTPClient))
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		rest:    xhttp.NewClient(cfg.BaseURL, opts...),
		model:   cfg.Model,
		limiter: limiter,
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete returns the whole assistant reply.
func (c *Client) Complete(ctx context.Context, msgs []Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for model rate limit: %w", err)
	}

	var resp chatResponse
	req := chatRequest{Model: c.model, Messages: msgs}
	if err := c.rest.JSON(ctx, http.MethodPost, chatCompletionPath, req, &resp); err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream calls onToken for each content delta and returns the accumulated text.
func (c *Client) Stream(ctx context.Context, msgs []Message, onToken func(string)) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for model rate limit: %w", err)
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: msgs, Stream: true})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}
	rc, err := c.rest.Stream(ctx, http.MethodPost, chatCompletionPath, body)
	if err != nil {
		return "", fmt.Errorf("model stream: %w", err)
	}
	defer rc.Close()

	var out strings.Builder
	scanErr := sse.Scan(rc, 0, func(f sse.Frame) bool {
		if f.IsDone() {
			return false
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(f.Data), &chunk); err != nil {
			log.Debug("model: skipping undecodable chunk: %v", err)
			return true
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content != "" {
				out.WriteString(ch.Delta.Content)
				if onToken != nil {
					onToken(ch.Delta.Content)
				}
			}
		}
		return true
	})
	if scanErr != nil {
		return out.String(), fmt.Errorf("reading model stream: %w", scanErr)
	}
	if err := ctx.Err(); err != nil {
		return out.String(), err
	}
	if out.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}

// Func adapts a plain completion function to a Channel. Stream delivers the
// whole reply as a single token.
type Func func(ctx context.Context, msgs []Message) (string, error)

func (f Func) Complete(ctx context.Context, msgs []Message) (string, error) {
	return f(ctx, msgs)
}

func (f Func) Stream(ctx context.Context, msgs []Message, onToken func(string)) (string, error) {
	s, err := f(ctx, msgs)
	if err != nil {
		return "", err
	}
	if onToken != nil && s != "" {
		onToken(s)
	}
	return s, nil
}

// Transcript renders msgs for debug logging.
func Transcript(msgs []Message) string {
	var b bytes.Buffer
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String()
}
