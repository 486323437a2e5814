package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"estatechat/internal/model"
	"estatechat/internal/utils"
)

// ListingPager pages through listings for ingestion.
type ListingPager interface {
	ListPage(ctx context.Context, afterID string, pageSize int) ([]model.ListingRow, error)
}

// VectorWriter stores vector entries.
type VectorWriter interface {
	Upsert(ctx context.Context, entries []model.VectorEntry) (int, []string)
}

// IngestStats summarizes an ingestion run.
type IngestStats struct {
	Scanned int
	Skipped int
	Indexed int
	Failed  int
	Errors  []string
}

// Ingestor embeds listing descriptions and writes them to the vector index.
type Ingestor struct {
	pager         ListingPager
	embedder      Embedder
	writer        VectorWriter
	batchSize     int
	maxInputBytes int
	logger        zerolog.Logger
}

// NewIngestor creates an ingestor. pager may be nil when only Upsert is used.
// maxInputTokens is the embedding model's context length; longer descriptions
// are cut before embedding.
func NewIngestor(pager ListingPager, embedder Embedder, writer VectorWriter, batchSize, maxInputTokens int, logger zerolog.Logger) *Ingestor {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxInputTokens <= 1 {
		maxInputTokens = 8191
	}
	return &Ingestor{
		pager:         pager,
		embedder:      embedder,
		writer:        writer,
		batchSize:     batchSize,
		maxInputBytes: maxInputTokens - 1, // every token spans at least one byte
		logger:        logger.With().Str("component", "ingest").Logger(),
	}
}

// Run indexes every listing with a description, batchSize at a time. Listings
// without a description are skipped. maxListings <= 0 means no cap.
// Embedding and write failures are counted and reported per listing; only store
// failures and cancellation end the run early.
func (in *Ingestor) Run(ctx context.Context, maxListings int) (IngestStats, error) {
	var stats IngestStats
	if in.pager == nil {
		return stats, fmt.Errorf("ingestor has no listing source")
	}

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageSize := in.batchSize
		if maxListings > 0 && maxListings-stats.Scanned < pageSize {
			pageSize = maxListings - stats.Scanned
		}
		if pageSize <= 0 {
			break
		}

		rows, err := in.pager.ListPage(ctx, afterID, pageSize)
		if err != nil {
			return stats, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if len(rows) == 0 {
			break
		}
		afterID = rows[len(rows)-1].ID
		stats.Scanned += len(rows)

		var metas []model.VectorMetadata
		for _, row := range rows {
			if !row.HasDescription() {
				stats.Skipped++
				in.logger.Debug().Str("id", row.ID).Msg("skipping listing without description")
				continue
			}
			meta := model.MetadataFromRow(row)
			if err := meta.Validate(); err != nil {
				stats.Skipped++
				in.logger.Warn().Err(err).Str("id", row.ID).Msg("skipping listing with invalid metadata")
				continue
			}
			metas = append(metas, meta)
		}

		if len(metas) > 0 {
			indexed, errs, err := in.embedAndWrite(ctx, metas)
			if err != nil {
				return stats, err
			}
			stats.Indexed += indexed
			stats.Failed += len(metas) - indexed
			stats.Errors = append(stats.Errors, errs...)
		}

		in.logger.Info().
			Int("scanned", stats.Scanned).
			Int("indexed", stats.Indexed).
			Int("skipped", stats.Skipped).
			Msg("ingest batch done")

		if len(rows) < pageSize {
			break
		}
	}
	return stats, nil
}

// Upsert writes pre-computed entries to the index.
func (in *Ingestor) Upsert(ctx context.Context, entries []model.VectorEntry) (int, []string) {
	return in.writer.Upsert(ctx, entries)
}

// embedAndWrite embeds one page and writes it. When the batch request fails the
// page is retried one listing at a time so a single bad description only costs
// its own entry. The error is non-nil only when ctx is done.
func (in *Ingestor) embedAndWrite(ctx context.Context, metas []model.VectorMetadata) (int, []string, error) {
	texts := make([]string, len(metas))
	for i, m := range metas {
		text, cut := utils.TruncateBytes(m.Text, in.maxInputBytes)
		if cut {
			in.logger.Debug().Str("id", m.ID).Int("bytes", len(m.Text)).Msg("description truncated for embedding")
		}
		texts[i] = text
	}

	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vectors) != len(metas) {
		err = fmt.Errorf("got %d vectors for %d texts", len(vectors), len(metas))
	}

	var errs []string
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		in.logger.Warn().Err(err).Int("batch", len(metas)).Msg("batch embedding failed, embedding one by one")

		vectors = make([][]float32, len(metas))
		for i, m := range metas {
			vec, err := in.embedder.Embed(ctx, texts[i])
			if err != nil {
				if ctx.Err() != nil {
					return 0, errs, ctx.Err()
				}
				in.logger.Warn().Err(err).Str("id", m.ID).Msg("embedding failed")
				errs = append(errs, fmt.Sprintf("id %s: embedding failed: %v", m.ID, err))
				continue
			}
			vectors[i] = vec
		}
	}

	entries := make([]model.VectorEntry, 0, len(metas))
	for i, m := range metas {
		if vectors[i] == nil {
			continue
		}
		entries = append(entries, model.VectorEntry{ID: m.ID, Embedding: vectors[i], Metadata: m})
	}
	if len(entries) == 0 {
		return 0, errs, nil
	}

	indexed, writeErrs := in.writer.Upsert(ctx, entries)
	return indexed, append(errs, writeErrs...), nil
}
