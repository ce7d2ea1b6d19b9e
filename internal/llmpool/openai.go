package llmpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"feedmind/internal/resilience/circuitbreaker"
)

// NewOpenAICaller builds a Caller backed by the OpenAI-compatible chat
// completions API, used both for OpenAI proper and any OpenAI-compatible
// provider referenced from the pool config (api_base override).
func NewOpenAICaller(cfg EndpointConfig, logger *slog.Logger) Caller {
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}
	client := openai.NewClientWithConfig(clientCfg)
	cb := circuitbreaker.New(circuitbreaker.OpenAIAPIConfig())

	return func(ctx context.Context, messages []Message) (string, error) {
		result, err := cb.Execute(func() (interface{}, error) {
			return doOpenAICall(ctx, client, cfg, messages)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				logger.Warn("openai circuit breaker open", slog.String("model", cfg.Model))
			}
			return "", err
		}
		return result.(string), nil
	}
}

func doOpenAICall(ctx context.Context, client *openai.Client, cfg EndpointConfig, messages []Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    chatMessages,
		Temperature: float32(cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai call: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
