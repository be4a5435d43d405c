package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/lookwise/insight-agent/internal/agent/model"
	errx "github.com/lookwise/insight-agent/internal/core/error"
	logx "github.com/lookwise/insight-agent/pkg/logger"
)

const (
	// DefaultMaxAttempts bounds invocations of the generation backend.
	DefaultMaxAttempts = 3

	rateLimitInitialBackoff = 1 * time.Second
	transientBackoff        = 500 * time.Millisecond
)

// rateLimitMarkers identify rate-limit-class failures by message content; the
// backend exposes no structured codes the client could rely on instead.
var rateLimitMarkers = []string{"rate limit", "quota", "429"}

// Client wraps the generation backend with bounded retry. Rate-limit-class
// failures back off exponentially starting at one second; other transient
// failures wait a flat half second. The client holds no state besides
// configuration; each invocation is independent.
type Client struct {
	cm          ChatModel
	modelName   string
	maxAttempts int
}

// NewClient builds a generation client over the given chat model.
func NewClient(cm ChatModel, cfg model.GenerationModelConfig) *Client {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return &Client{
		cm:          cm,
		modelName:   cfg.Model,
		maxAttempts: attempts,
	}
}

// Invoke sends a single-prompt request and returns the response text.
// Exhausting all attempts returns the last failure.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	messages := []*schema.Message{schema.UserMessage(prompt)}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		out, err := c.cm.Generate(ctx, messages)
		if err == nil {
			c.logUsage(out)
			return strings.TrimSpace(out.Content), nil
		}
		lastErr = err

		if attempt == c.maxAttempts-1 {
			break
		}

		var wait time.Duration
		if isRateLimited(err) {
			wait = rateLimitInitialBackoff << attempt
			logx.Warn().
				Int("attempt", attempt+1).
				Int("max_attempts", c.maxAttempts).
				Dur("wait", wait).
				Msg("Rate limit hit, backing off before retry")
		} else {
			wait = transientBackoff
			logx.Warn().
				Int("attempt", attempt+1).
				Int("max_attempts", c.maxAttempts).
				Err(err).
				Msg("Generation attempt failed")
		}

		if err := sleepCtx(ctx, wait); err != nil {
			return "", err
		}
	}

	logx.Error().Err(lastErr).Int("attempts", c.maxAttempts).Msg("All generation attempts failed")
	return "", errx.WrapGeneration(lastErr)
}

func (c *Client) logUsage(out *schema.Message) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(c.modelName))
	logx.Debug().
		Str("model", c.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// sleepCtx waits for the given duration unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ model.Generator = (*Client)(nil)
