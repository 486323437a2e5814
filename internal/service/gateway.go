package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"estatechat/internal/config"
	"estatechat/internal/model"
)

// Fixed replies returned by the gateway instead of errors.
const (
	MsgRateLimited        = "You have reached the rate limit. Please try again later."
	MsgUnexpectedResponse = "An unexpected error occurred while processing the response."
	MsgServiceError       = "An error occurred while contacting the language model service."
	MsgUnexpected         = "An unexpected error occurred."
)

// ModelInfo describes a chat model reachable through the gateway.
type ModelInfo struct {
	Name           string
	ID             string
	SupportsImages bool
}

var modelTable = map[string]ModelInfo{
	"gpt-4o":            {Name: "gpt-4o", ID: "openai/gpt-4o-2024-11-20", SupportsImages: true},
	"gpt-4o-mini":       {Name: "gpt-4o-mini", ID: "openai/gpt-4o-mini", SupportsImages: true},
	"deepseek-chat":     {Name: "deepseek-chat", ID: "deepseek/deepseek-chat", SupportsImages: false},
	"claude-3.5-sonnet": {Name: "claude-3.5-sonnet", ID: "anthropic/claude-3.5-sonnet", SupportsImages: true},
}

// LookupModel resolves a short model name or a provider model id.
func LookupModel(name string) (ModelInfo, error) {
	if info, ok := modelTable[name]; ok {
		return info, nil
	}
	for _, info := range modelTable {
		if info.ID == name {
			return info, nil
		}
	}
	return ModelInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedModel, name)
}

// SupportedModels lists the short model names in sorted order.
func SupportedModels() []string {
	names := make([]string, 0, len(modelTable))
	for name := range modelTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChatCompleter is the subset of *openai.Client used by the gateway.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GenerateOption customizes a single GenerateResponse call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	imageURL string
}

// WithImageURL attaches an image to the user turn. Ignored for text-only models.
func WithImageURL(url string) GenerateOption {
	return func(o *generateOptions) {
		o.imageURL = url
	}
}

// Gateway sends prompts to a hosted chat model. It never returns errors:
// failures are logged and mapped to one of the fixed Msg* replies.
type Gateway struct {
	client      ChatCompleter
	model       ModelInfo
	temperature float32
	maxTokens   int
	maxRetries  int
	baseDelay   time.Duration
	timeout     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      zerolog.Logger
}

// NewGateway validates the configuration and creates a gateway.
func NewGateway(cfg config.LLMConfig, client ChatCompleter, logger zerolog.Logger) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	info, err := LookupModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Gateway{
		client:      client,
		model:       info,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		maxRetries:  maxRetries,
		baseDelay:   cfg.BaseDelay,
		timeout:     cfg.Timeout,
		sleep:       sleepContext,
		logger:      logger.With().Str("component", "llm_gateway").Str("model", info.ID).Logger(),
	}, nil
}

// Model returns the resolved model.
func (g *Gateway) Model() ModelInfo {
	return g.model
}

// GenerateResponse appends prompt to a copy of history as a user turn and returns
// the model's reply. Rate limiting (429) is retried up to maxRetries times with
// doubling delays; every other failure returns immediately.
func (g *Gateway) GenerateResponse(ctx context.Context, prompt string, history []model.ConversationTurn, opts ...GenerateOption) string {
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model.ID,
		Messages:    g.buildMessages(prompt, history, o),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	delay := g.baseDelay
	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := g.complete(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				g.logger.Error().Str("response_id", resp.ID).Msg("chat completion returned no choices")
				return MsgUnexpectedResponse
			}
			g.logger.Info().
				Int("attempt", attempt+1).
				Int("prompt_tokens", resp.Usage.PromptTokens).
				Int("completion_tokens", resp.Usage.CompletionTokens).
				Dur("took", time.Since(start)).
				Msg("chat completion succeeded")
			return resp.Choices[0].Message.Content
		}

		status := statusCode(err)
		switch {
		case status == http.StatusTooManyRequests:
			if attempt >= g.maxRetries {
				g.logger.Error().Err(err).Int("attempts", attempt+1).Msg("rate limited, retries exhausted")
				return MsgRateLimited
			}
			g.logger.Warn().Int("attempt", attempt+1).Dur("retry_in", delay).Msg("rate limited, backing off")
			if err := g.sleep(ctx, delay); err != nil {
				g.logger.Error().Err(err).Msg("backoff interrupted")
				return MsgUnexpected
			}
			delay *= 2

		case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
			g.logger.Error().Err(err).Int("status", status).Msg("chat completion rejected the request")
			return MsgUnexpectedResponse

		case status > 0:
			g.logger.Error().Err(err).Int("status", status).Msg("chat completion failed")
			return MsgServiceError

		default:
			g.logger.Error().Err(err).Msg("chat completion failed without a status")
			return MsgUnexpected
		}
	}
}

func (g *Gateway) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.client.CreateChatCompletion(ctx, req)
}

func (g *Gateway) buildMessages(prompt string, history []model.ConversationTurn, o generateOptions) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if o.imageURL != "" && g.model.SupportsImages {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: o.imageURL}},
		}
	} else {
		if o.imageURL != "" {
			g.logger.Debug().Msg("model is text-only, dropping image")
		}
		user.Content = prompt
	}
	return append(messages, user)
}

// statusCode extracts the HTTP status from a go-openai error, or 0 when there is none.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
