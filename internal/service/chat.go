package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"estatechat/internal/model"
)

const promptFraming = "You are a helpful real-estate assistant. Use the listings below when they are relevant to the question, and say so when none of them fit."

// ResponseGenerator produces a reply for a prompt and conversation history.
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, prompt string, history []model.ConversationTurn, opts ...GenerateOption) string
}

// ListingLookup is the structured engine plus single-listing lookup.
type ListingLookup interface {
	StructuredSearcher
	Get(ctx context.Context, id string) (*model.ListingRecord, error)
}

// ChatService is the entry point for chat and search requests.
type ChatService struct {
	structured  ListingLookup
	coordinator *Coordinator
	generator   ResponseGenerator
	logger      zerolog.Logger
}

// NewChatService creates the chat service
func NewChatService(structured ListingLookup, coordinator *Coordinator, generator ResponseGenerator, logger zerolog.Logger) *ChatService {
	return &ChatService{
		structured:  structured,
		coordinator: coordinator,
		generator:   generator,
		logger:      logger.With().Str("component", "chat").Logger(),
	}
}

// Handle answers a user message using retrieved listings as context.
//
// A blank message with filters returns the structured summary directly without
// calling the model. Store and index failures are returned as errors; model
// failures come back as the gateway's fixed replies.
func (s *ChatService) Handle(ctx context.Context, userMessage string, criteria model.FilterCriteria, history []model.ConversationTurn, opts ...GenerateOption) (string, error) {
	start := time.Now()
	logger := s.logger.With().Str("request_id", RequestIDFromContext(ctx)).Logger()

	if strings.TrimSpace(userMessage) == "" {
		summary, records, err := s.coordinator.Summary(ctx, criteria)
		if err != nil {
			return "", err
		}
		logger.Info().Int("matches", len(records)).Dur("took", time.Since(start)).Msg("answered from structured summary")
		return summary, nil
	}

	rc, err := s.coordinator.Build(ctx, userMessage, criteria)
	if err != nil {
		return "", err
	}

	reply := s.generator.GenerateResponse(ctx, BuildPrompt(rc.Lines, userMessage), history, opts...)

	logger.Info().
		Int("structured", len(rc.Structured)).
		Int("semantic", len(rc.Semantic)).
		Int("history", len(history)).
		Dur("took", time.Since(start)).
		Msg("chat handled")
	return reply, nil
}

// Search is the structured-only variant; it never calls the model.
func (s *ChatService) Search(ctx context.Context, criteria model.FilterCriteria) ([]model.ListingRecord, error) {
	return s.structured.Search(ctx, criteria)
}

// Get returns one listing by id, or nil when it does not exist.
func (s *ChatService) Get(ctx context.Context, id string) (*model.ListingRecord, error) {
	return s.structured.Get(ctx, id)
}

// BuildPrompt frames the context lines and the user's question into one prompt.
func BuildPrompt(lines []string, question string) string {
	var b strings.Builder
	b.WriteString(promptFraming)
	b.WriteString("\n\nThe following properties matched your filters:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nNow answer the following question:\n")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request id for log correlation.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or "" when none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
