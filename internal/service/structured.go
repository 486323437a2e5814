package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"estatechat/internal/config"
	"estatechat/internal/model"
)

// ListingStore is the read-only listings source.
type ListingStore interface {
	// FindListings applies every criterion, orders by price ascending with unknown
	// prices last, and returns at most criteria.Limit rows.
	FindListings(ctx context.Context, criteria model.FilterCriteria) ([]model.ListingRow, error)
	GetListing(ctx context.Context, id string) (*model.ListingRow, error)
}

// StructuredSearch filters listings by neighborhood, price and size.
type StructuredSearch struct {
	store        ListingStore
	defaultLimit int
	maxLimit     int
	logger       zerolog.Logger
}

// NewStructuredSearch creates the structured filter engine
func NewStructuredSearch(store ListingStore, cfg config.SearchConfig, logger zerolog.Logger) *StructuredSearch {
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &StructuredSearch{
		store:        store,
		defaultLimit: defaultLimit,
		maxLimit:     cfg.MaxLimit,
		logger:       logger.With().Str("component", "structured_search").Logger(),
	}
}

// Search returns listings matching every supplied filter, cheapest first.
//
// Filtering, ordering and the limit are pushed down to the store; the result is
// re-checked after parsing so a listing whose value is unknown never passes a
// bound. Unknown prices sort after known ones and ties are broken by id.
// A zero Limit means the default limit.
func (s *StructuredSearch) Search(ctx context.Context, criteria model.FilterCriteria) ([]model.ListingRecord, error) {
	limit := criteria.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}

	criteria.Limit = limit

	rows, err := s.store.FindListings(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	results := make([]model.ListingRecord, 0, len(rows))
	for _, row := range rows {
		rec := row.Record()
		if matches(rec, criteria) {
			results = append(results, rec)
		}
	}

	if dropped := len(rows) - len(results); dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("store returned listings that fail the parsed filters")
	}

	sort.SliceStable(results, func(i, j int) bool {
		return priceLess(results[i], results[j])
	})

	if len(results) > limit {
		results = results[:limit]
	}

	s.logger.Debug().
		Int("fetched", len(rows)).
		Int("returned", len(results)).
		Msg("structured search")
	return results, nil
}

// Get returns one normalized listing, or nil when it does not exist.
func (s *StructuredSearch) Get(ctx context.Context, id string) (*model.ListingRecord, error) {
	row, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if row == nil {
		return nil, nil
	}
	rec := row.Record()
	return &rec, nil
}

func matches(rec model.ListingRecord, c model.FilterCriteria) bool {
	if c.Neighborhood != nil {
		want := strings.ToLower(strings.TrimSpace(*c.Neighborhood))
		if want != "" {
			if rec.Neighborhood == nil || !strings.Contains(strings.ToLower(*rec.Neighborhood), want) {
				return false
			}
		}
	}
	if c.MaxPrice != nil {
		if rec.SalePrice == nil || *rec.SalePrice > *c.MaxPrice {
			return false
		}
	}
	if c.MinSqft != nil {
		if rec.GrossSquareFeet == nil || *rec.GrossSquareFeet < *c.MinSqft {
			return false
		}
	}
	return true
}

func priceLess(a, b model.ListingRecord) bool {
	switch {
	case a.SalePrice == nil && b.SalePrice == nil:
		return idLess(a.ID, b.ID)
	case a.SalePrice == nil:
		return false
	case b.SalePrice == nil:
		return true
	case *a.SalePrice != *b.SalePrice:
		return *a.SalePrice < *b.SalePrice
	default:
		return idLess(a.ID, b.ID)
	}
}

// idLess orders numeric ids numerically and everything else lexically.
func idLess(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}
