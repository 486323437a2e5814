package model

// FilterCriteria represents the structured search filters. Every field is optional.
type FilterCriteria struct {
	Neighborhood *string  `json:"neighborhood,omitempty"`
	MaxPrice     *float64 `json:"max_price,omitempty"` // inclusive
	MinSqft      *float64 `json:"min_sqft,omitempty"`  // inclusive
	Limit        int      `json:"limit,omitempty"`
}

// ConversationTurn is one message of a chat history.
type ConversationTurn struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest represents POST /api/v1/chat
type ChatRequest struct {
	Prompt       string             `json:"prompt"`
	Neighborhood *string            `json:"neighborhood,omitempty"`
	MaxPrice     *float64           `json:"max_price,omitempty" binding:"omitempty,gte=0"`
	MinSqft      *float64           `json:"min_sqft,omitempty" binding:"omitempty,gte=0"`
	History      []ConversationTurn `json:"history,omitempty" binding:"omitempty,dive"`
	ImageURL     string             `json:"image_url,omitempty" binding:"omitempty,url"`
}

// Criteria extracts the structured filters of a chat request.
func (r ChatRequest) Criteria() FilterCriteria {
	return FilterCriteria{
		Neighborhood: r.Neighborhood,
		MaxPrice:     r.MaxPrice,
		MinSqft:      r.MinSqft,
	}
}

// ChatResponse represents the chat reply
type ChatResponse struct {
	Reply     string `json:"reply"`
	RequestID string `json:"request_id,omitempty"`
}

// SearchRequest represents POST /api/v1/search
type SearchRequest struct {
	Neighborhood *string  `json:"neighborhood,omitempty"`
	MaxPrice     *float64 `json:"max_price,omitempty" binding:"omitempty,gte=0"`
	MinSqft      *float64 `json:"min_sqft,omitempty" binding:"omitempty,gte=0"`
	Limit        int      `json:"limit,omitempty" binding:"omitempty,gte=0"`
}

// Criteria extracts the structured filters of a search request.
func (r SearchRequest) Criteria() FilterCriteria {
	return FilterCriteria{
		Neighborhood: r.Neighborhood,
		MaxPrice:     r.MaxPrice,
		MinSqft:      r.MinSqft,
		Limit:        r.Limit,
	}
}

// SearchResponse represents a structured search result
type SearchResponse struct {
	Results []ListingRecord `json:"results"`
	Count   int             `json:"count"`
	Took    int64           `json:"took_ms"`
}

// EmbeddingBatchRequest represents a batch vector upsert request
type EmbeddingBatchRequest struct {
	Entries []VectorEntry `json:"entries" binding:"required"`
}

// EmbeddingBatchResponse represents the response for batch vector upsert
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
