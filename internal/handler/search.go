package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"estatechat/internal/model"
)

// ListingFinder runs structured searches and single-listing lookups.
type ListingFinder interface {
	Search(ctx context.Context, criteria model.FilterCriteria) ([]model.ListingRecord, error)
	Get(ctx context.Context, id string) (*model.ListingRecord, error)
}

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	finder       ListingFinder
	defaultLimit int
	maxLimit     int
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(finder ListingFinder, defaultLimit, maxLimit int) *SearchHandler {
	return &SearchHandler{
		finder:       finder,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if req.Limit <= 0 {
		req.Limit = h.defaultLimit
	}
	if req.Limit > h.maxLimit {
		req.Limit = h.maxLimit
	}

	start := time.Now()
	results, err := h.finder.Search(c.Request.Context(), req.Criteria())
	if err != nil {
		writeError(c, "Search failed", err)
		return
	}

	c.JSON(http.StatusOK, model.SearchResponse{
		Results: results,
		Count:   len(results),
		Took:    time.Since(start).Milliseconds(),
	})
}

// GetListing handles GET /api/v1/listings/:id
func (h *SearchHandler) GetListing(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	listing, err := h.finder.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, "Failed to get listing", err)
		return
	}

	if listing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	c.JSON(http.StatusOK, listing)
}
