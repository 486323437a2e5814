package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatechat/internal/model"
)

func TestSemanticSearchConvertsHits(t *testing.T) {
	longText := "Spacious loft with exposed brick, " + strings.Repeat("oversized windows and oak floors, ", 10)
	index := &fakeIndex{hits: []model.VectorHit{
		{ID: "42", Text: longText, Score: 0.91, Metadata: model.VectorMetadata{ID: "42", Text: longText, Neighborhood: "SoHo"}},
		{ID: "7", Score: 0.80, Metadata: model.VectorMetadata{ID: "7", Snippet: "Quiet studio near the park", SalePrice: model.NewFlexNumber(floatPtr(410000))}},
	}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	s := NewSemanticSearch(embedder, index, 5, nopLogger)

	got, err := s.Search(context.Background(), "loft with brick", 0, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "42", got[0].ID, "index order is preserved")
	assert.True(t, strings.HasPrefix(got[0].Snippet, "Spacious loft"))
	assert.LessOrEqual(t, len([]rune(got[0].Snippet)), model.SnippetLength+1)
	assert.True(t, strings.HasSuffix(got[0].Snippet, "…"))
	assert.Equal(t, "SoHo", *got[0].Neighborhood)

	assert.Equal(t, "Quiet studio near the park", got[1].Snippet)
	assert.Equal(t, 410000.0, *got[1].SalePrice)

	assert.Equal(t, 5, index.lastK, "k defaults when not positive")
	assert.Equal(t, 1, embedder.calls)
}

func TestSemanticSearchBoundsByK(t *testing.T) {
	var hits []model.VectorHit
	for i := 0; i < 8; i++ {
		id := fmt.Sprint(i)
		hits = append(hits, model.VectorHit{ID: id, Metadata: model.VectorMetadata{ID: id, Text: "listing " + id}})
	}
	s := NewSemanticSearch(&fakeEmbedder{vector: []float32{1}}, &fakeIndex{hits: hits}, 5, nopLogger)

	got, err := s.Search(context.Background(), "anything", 3, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSemanticSearchBlankQuery(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1}}
	index := &fakeIndex{}
	s := NewSemanticSearch(embedder, index, 5, nopLogger)

	got, err := s.Search(context.Background(), "   ", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, embedder.calls)
	assert.Zero(t, index.calls)
}

func TestSemanticSearchFailures(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		s := NewSemanticSearch(&fakeEmbedder{err: errors.New("401")}, &fakeIndex{}, 5, nopLogger)
		_, err := s.Search(context.Background(), "q", 5, nil)
		assert.ErrorIs(t, err, ErrIndexUnavailable)
	})

	t.Run("index failure", func(t *testing.T) {
		s := NewSemanticSearch(&fakeEmbedder{vector: []float32{1}}, &fakeIndex{err: errors.New("timeout")}, 5, nopLogger)
		_, err := s.Search(context.Background(), "q", 5, nil)
		assert.ErrorIs(t, err, ErrIndexUnavailable)
	})

	t.Run("invalid filter is not an outage", func(t *testing.T) {
		index := &fakeIndex{err: fmt.Errorf("%w: unknown field", model.ErrInvalidFilter)}
		s := NewSemanticSearch(&fakeEmbedder{vector: []float32{1}}, index, 5, nopLogger)
		_, err := s.Search(context.Background(), "q", 5, model.MetadataFilter{"color": "red"})
		assert.ErrorIs(t, err, model.ErrInvalidFilter)
		assert.NotErrorIs(t, err, ErrIndexUnavailable)
	})
}
