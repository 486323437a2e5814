package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"estatechat/internal/config"
	"estatechat/internal/model"
	"estatechat/internal/utils"
)

// NoMatchesLine is the summary emitted when the structured filters match nothing.
const NoMatchesLine = "No listings matched the given filters."

// StructuredSearcher is the structured filter engine as seen by the coordinator.
type StructuredSearcher interface {
	Search(ctx context.Context, criteria model.FilterCriteria) ([]model.ListingRecord, error)
}

// SemanticSearcher is the semantic retrieval engine as seen by the coordinator.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, k int, filter model.MetadataFilter) ([]model.ListingRecord, error)
}

// RetrievalContext is the assembled context for one request.
type RetrievalContext struct {
	Lines      []string
	Structured []model.ListingRecord
	Semantic   []model.ListingRecord
}

// Text joins the context lines.
func (rc *RetrievalContext) Text() string {
	return strings.Join(rc.Lines, "\n")
}

// Coordinator runs both engines and merges their results into a bounded context block.
type Coordinator struct {
	structured      StructuredSearcher
	semantic        SemanticSearcher
	structuredLimit int
	semanticK       int
	maxLines        int
	filterSemantic  bool
	logger          zerolog.Logger
}

// NewCoordinator creates a retrieval coordinator
func NewCoordinator(structured StructuredSearcher, semantic SemanticSearcher, cfg config.SearchConfig, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{
		structured:      structured,
		semantic:        semantic,
		structuredLimit: cfg.StructuredLimit,
		semanticK:       cfg.SemanticK,
		maxLines:        cfg.MaxContextLines,
		filterSemantic:  cfg.FilterSemantic,
		logger:          logger.With().Str("component", "coordinator").Logger(),
	}
	if c.structuredLimit <= 0 {
		c.structuredLimit = 10
	}
	if c.semanticK <= 0 {
		c.semanticK = 5
	}
	if c.maxLines <= 0 {
		c.maxLines = 15
	}
	return c
}

// Build runs the structured and semantic searches concurrently and assembles
// the context: structured lines first, then semantic lines, capped in total.
// The semantic search is skipped for a blank query.
func (c *Coordinator) Build(ctx context.Context, query string, criteria model.FilterCriteria) (*RetrievalContext, error) {
	criteria.Limit = c.structuredLimit
	rc := &RetrievalContext{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := c.structured.Search(gctx, criteria)
		if err != nil {
			return fmt.Errorf("structured search: %w", err)
		}
		rc.Structured = records
		return nil
	})
	if strings.TrimSpace(query) != "" {
		g.Go(func() error {
			var filter model.MetadataFilter
			if c.filterSemantic {
				filter = MetadataFilterFor(criteria)
			}
			records, err := c.semantic.Search(gctx, query, c.semanticK, filter)
			if err != nil {
				return fmt.Errorf("semantic search: %w", err)
			}
			rc.Semantic = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lines := SummaryLines(rc.Structured)
	for _, rec := range rc.Semantic {
		lines = append(lines, semanticLine(rec))
	}
	if len(lines) > c.maxLines {
		lines = lines[:c.maxLines]
	}
	rc.Lines = lines

	c.logger.Debug().
		Int("structured", len(rc.Structured)).
		Int("semantic", len(rc.Semantic)).
		Int("lines", len(rc.Lines)).
		Msg("retrieval context built")
	return rc, nil
}

// Summary runs only the structured search and returns its summary text.
func (c *Coordinator) Summary(ctx context.Context, criteria model.FilterCriteria) (string, []model.ListingRecord, error) {
	criteria.Limit = c.structuredLimit
	records, err := c.structured.Search(ctx, criteria)
	if err != nil {
		return "", nil, fmt.Errorf("structured search: %w", err)
	}
	lines := SummaryLines(records)
	if len(lines) > c.maxLines {
		lines = lines[:c.maxLines]
	}
	return strings.Join(lines, "\n"), records, nil
}

// SummaryLines renders one line per structured record, or NoMatchesLine when empty.
func SummaryLines(records []model.ListingRecord) []string {
	if len(records) == 0 {
		return []string{NoMatchesLine}
	}
	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = structuredLine(rec)
	}
	return lines
}

// MetadataFilterFor expresses structured criteria in the vector index filter syntax.
func MetadataFilterFor(c model.FilterCriteria) model.MetadataFilter {
	filter := model.MetadataFilter{}
	if c.Neighborhood != nil && strings.TrimSpace(*c.Neighborhood) != "" {
		filter["neighborhood"] = map[string]any{"$icontains": strings.TrimSpace(*c.Neighborhood)}
	}
	if c.MaxPrice != nil {
		filter["sale_price"] = map[string]any{"$lte": *c.MaxPrice}
	}
	if c.MinSqft != nil {
		filter["gross_square_feet"] = map[string]any{"$gte": *c.MinSqft}
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

func structuredLine(rec model.ListingRecord) string {
	address := "Unknown address"
	if rec.Address != nil {
		address = *rec.Address
	}
	neighborhood := "an unknown neighborhood"
	if rec.Neighborhood != nil {
		neighborhood = *rec.Neighborhood
	}
	price := "an unknown price"
	if rec.SalePrice != nil {
		price = "$" + utils.FormatAmount(*rec.SalePrice)
	}
	size := "size unknown"
	if rec.GrossSquareFeet != nil {
		size = utils.FormatAmount(*rec.GrossSquareFeet) + " sqft"
	}
	return fmt.Sprintf("%s in %s for %s (%s)", address, neighborhood, price, size)
}

func semanticLine(rec model.ListingRecord) string {
	snippet := strings.Join(strings.Fields(rec.Snippet), " ")
	if snippet == "" {
		snippet = "(no description)"
	}
	return fmt.Sprintf("%s: %s", rec.ID, snippet)
}
