package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/tildaslashalef/sonarfix/internal/config"
	"github.com/tildaslashalef/sonarfix/internal/loggy"
)

// OpenAIClient adapts the go-openai client to the Client interface
type OpenAIClient struct {
	client     *openai.Client
	model      string
	maxRetries int
	logger     *loggy.Logger
}

// NewOpenAIClient creates a new OpenAI client from config
func NewOpenAIClient(cfg config.OpenAIConfig, logger *loggy.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// GenerateChat implements the Client interface for OpenAI
func (c *OpenAIClient) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: wireTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		openaiReq.MaxTokens = req.MaxTokens
	}

	c.logger.Debug("Sending chat completion request",
		"model", model,
		"messages", len(messages),
		"temperature", req.Temperature)

	var resp openai.ChatCompletionResponse
	operation := func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, openaiReq)
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("Chat completion attempt failed", "error", err)
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(c.maxRetries, 0))),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("openai chat generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	c.logger.Debug("Received chat completion",
		"model", resp.Model,
		"finish_reason", choice.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &ChatResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Completed:    choice.FinishReason == openai.FinishReasonStop,
	}, nil
}

// wireTemperature maps a temperature to the request field. go-openai drops a
// zero temperature from the JSON body, which the API then treats as 1.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// retryable reports whether a failed call may succeed when repeated. Only
// 429 and 5xx responses or transport failures qualify.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusRetryable(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusRetryable(reqErr.HTTPStatusCode)
	}
	return true
}

func statusRetryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500 || code == 0
}
