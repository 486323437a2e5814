package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"estatechat/internal/model"
)

// VectorUpserter writes pre-computed vector entries.
type VectorUpserter interface {
	Upsert(ctx context.Context, entries []model.VectorEntry) (int, []string)
}

// EmbeddingHandler handles embedding-related HTTP requests
type EmbeddingHandler struct {
	upserter   VectorUpserter
	dimensions int
	maxBatch   int
}

// NewEmbeddingHandler creates a new embedding handler
func NewEmbeddingHandler(upserter VectorUpserter, dimensions, maxBatch int) *EmbeddingHandler {
	return &EmbeddingHandler{
		upserter:   upserter,
		dimensions: dimensions,
		maxBatch:   maxBatch,
	}
}

// BatchUpdate handles POST /api/v1/embeddings/batch
func (h *EmbeddingHandler) BatchUpdate(c *gin.Context) {
	var req model.EmbeddingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No entries provided"})
		return
	}
	if h.maxBatch > 0 && len(req.Entries) > h.maxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Too many entries, at most %d per batch", h.maxBatch)})
		return
	}

	for i, entry := range req.Entries {
		if len(entry.Embedding) != h.dimensions {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid embedding dimension at index %d, expected %d", i, h.dimensions),
			})
			return
		}
	}

	success, errs := h.upserter.Upsert(c.Request.Context(), req.Entries)

	response := model.EmbeddingBatchResponse{
		Success: success,
		Failed:  len(req.Entries) - success,
		Errors:  errs,
	}

	if len(errs) > 0 {
		c.JSON(http.StatusPartialContent, response)
	} else {
		c.JSON(http.StatusOK, response)
	}
}
