package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"estatechat/internal/model"
)

// VectorIndex is a nearest-neighbor index over listing descriptions.
type VectorIndex interface {
	Similar(ctx context.Context, vector []float32, k int, filter model.MetadataFilter) ([]model.VectorHit, error)
}

// SemanticSearch finds listings whose descriptions are close to a free-text query.
type SemanticSearch struct {
	embedder Embedder
	index    VectorIndex
	defaultK int
	logger   zerolog.Logger
}

// NewSemanticSearch creates the semantic retrieval engine
func NewSemanticSearch(embedder Embedder, index VectorIndex, defaultK int, logger zerolog.Logger) *SemanticSearch {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &SemanticSearch{
		embedder: embedder,
		index:    index,
		defaultK: defaultK,
		logger:   logger.With().Str("component", "semantic_search").Logger(),
	}
}

// Search returns up to k listings in the index's relevance order.
// A blank query returns no results without calling the index.
func (s *SemanticSearch) Search(ctx context.Context, query string, k int, filter model.MetadataFilter) ([]model.ListingRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.ListingRecord{}, nil
	}
	if k <= 0 {
		k = s.defaultK
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrIndexUnavailable, err)
	}

	hits, err := s.index.Similar(ctx, vector, k, filter)
	if err != nil {
		if errors.Is(err, model.ErrInvalidFilter) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	results := make([]model.ListingRecord, len(hits))
	for i, hit := range hits {
		results[i] = hit.Record()
		if results[i].Snippet == "" {
			s.logger.Warn().Str("id", results[i].ID).Msg("indexed entry has neither text nor snippet")
		}
	}

	s.logger.Debug().Int("k", k).Int("returned", len(results)).Msg("semantic search")
	return results, nil
}
