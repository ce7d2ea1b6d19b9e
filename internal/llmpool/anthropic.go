package llmpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"feedmind/internal/resilience/circuitbreaker"
)

// NewAnthropicCaller builds a Caller backed by the Anthropic messages API.
// The transport-level circuit breaker here is independent of the pool's own
// error-counter/circuit-until bookkeeping in pool.go — this one protects
// against hammering a single endpoint's HTTP transport, the pool-level one
// implements spec's endpoint selection semantics.
func NewAnthropicCaller(cfg EndpointConfig, logger *slog.Logger) Caller {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.APIBase != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIBase))
	}
	client := anthropic.NewClient(opts...)
	cb := circuitbreaker.New(circuitbreaker.ClaudeAPIConfig())

	return func(ctx context.Context, messages []Message) (string, error) {
		result, err := cb.Execute(func() (interface{}, error) {
			return doAnthropicCall(ctx, client, cfg, messages)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				logger.Warn("anthropic circuit breaker open", slog.String("model", cfg.Model))
			}
			return "", err
		}
		return result.(string), nil
	}
}

func doAnthropicCall(ctx context.Context, client anthropic.Client, cfg EndpointConfig, messages []Message) (string, error) {
	var system string
	var params []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "assistant":
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: 4096,
		Messages:  params,
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic call: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("anthropic call: empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("anthropic call: unexpected response content type")
	}
	return textBlock.Text, nil
}
