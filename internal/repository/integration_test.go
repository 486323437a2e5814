//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"estatechat/internal/cache"
	"estatechat/internal/config"
	"estatechat/internal/model"
)

const testDims = 3

func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase("estatechat_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Connect(ctx, dsn, 4, 2)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `
		CREATE TABLE listings (
			id INTEGER PRIMARY KEY,
			borough TEXT,
			neighborhood TEXT,
			address TEXT,
			sale_price TEXT,
			gross_square_feet TEXT,
			year_built INTEGER,
			description TEXT
		)`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO listings VALUES
			(1, 'Manhattan', 'UPPER EAST SIDE (59-79)', '10 E 70TH ST', '1,250,000', '1,100', 1925, 'Pre-war classic six with park views'),
			(2, 'Manhattan', 'UPPER WEST SIDE (79-96)', '300 W 85TH ST', '850000', '750', 1960, NULL),
			(3, 'Brooklyn', 'PARK SLOPE', '12 5TH AVE', ' - ', '2,000', 0, 'Brownstone with garden'),
			(4, 'Queens', 'ASTORIA', '20 DITMARS BLVD', '640000', NULL, 1931, '   '),
			(10, 'Manhattan', 'EAST_VILLAGE', '1 AVE A', '500000', '600', 2001, 'Walk-up near Tompkins Square')`)
	require.NoError(t, err)

	return db
}

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }

func TestListingRepositoryIntegration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	repo, err := NewListingRepository(db, "listings")
	require.NoError(t, err)
	require.NoError(t, repo.Ping(ctx))

	t.Run("neighborhood contains, case-insensitive, cheapest first", func(t *testing.T) {
		rows, err := repo.FindListings(ctx, model.FilterCriteria{Neighborhood: strPtr("upper")})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "2", rows[0].ID)
		assert.Equal(t, "1", rows[1].ID)
		assert.Equal(t, "1,250,000", *rows[1].SalePrice)
		assert.Equal(t, 1250000.0, *rows[1].Record().SalePrice)
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		rows, err := repo.FindListings(ctx, model.FilterCriteria{Neighborhood: strPtr("_")})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "10", rows[0].ID)
	})

	t.Run("bounds and order are applied before the limit", func(t *testing.T) {
		rows, err := repo.FindListings(ctx, model.FilterCriteria{MaxPrice: floatPtr(700000), Limit: 1})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "10", rows[0].ID, "highest id, lowest price")
	})

	t.Run("delimited values parse, unknown values never match", func(t *testing.T) {
		rows, err := repo.FindListings(ctx, model.FilterCriteria{MinSqft: floatPtr(1000)})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "1", rows[0].ID)
		assert.Equal(t, "3", rows[1].ID, "unknown price sorts last")

		rows, err = repo.FindListings(ctx, model.FilterCriteria{MaxPrice: floatPtr(1250000)})
		require.NoError(t, err)
		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		assert.Equal(t, []string{"10", "4", "2", "1"}, ids)
	})

	t.Run("no limit returns every row, unknown price last", func(t *testing.T) {
		rows, err := repo.FindListings(ctx, model.FilterCriteria{})
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, "3", rows[4].ID)
	})

	t.Run("unknown values", func(t *testing.T) {
		row, err := repo.GetListing(ctx, "3")
		require.NoError(t, err)
		require.NotNil(t, row)
		rec := row.Record()
		assert.Nil(t, rec.SalePrice)
		assert.Nil(t, rec.YearBuilt)
		assert.Equal(t, 2000.0, *rec.GrossSquareFeet)
	})

	t.Run("missing listing", func(t *testing.T) {
		row, err := repo.GetListing(ctx, "999")
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("keyset paging", func(t *testing.T) {
		var ids []string
		after := ""
		for {
			page, err := repo.ListPage(ctx, after, 2)
			require.NoError(t, err)
			if len(page) == 0 {
				break
			}
			for _, r := range page {
				ids = append(ids, r.ID)
			}
			after = page[len(page)-1].ID
		}
		assert.Equal(t, []string{"1", "10", "2", "3", "4"}, ids)
	})
}

func TestVectorRepositoryIntegration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	listings, err := NewListingRepository(db, "listings")
	require.NoError(t, err)
	index, err := NewVectorRepository(db, "listing_vectors", testDims)
	require.NoError(t, err)
	require.NoError(t, index.EnsureSchema(ctx))
	require.NoError(t, index.EnsureSchema(ctx), "schema creation is idempotent")

	rows, err := listings.ListPage(ctx, "", 10)
	require.NoError(t, err)

	vectors := map[string][]float32{
		"1":  {1, 0, 0},
		"3":  {0, 1, 0},
		"10": {0.9, 0.1, 0},
	}
	var entries []model.VectorEntry
	for _, r := range rows {
		if !r.HasDescription() {
			continue
		}
		entries = append(entries, model.VectorEntry{ID: r.ID, Embedding: vectors[r.ID], Metadata: model.MetadataFromRow(r)})
	}
	require.Len(t, entries, 3)

	n, errs := index.Upsert(ctx, entries)
	assert.Empty(t, errs)
	assert.Equal(t, 3, n)

	n, _ = index.Upsert(ctx, entries[:1])
	assert.Equal(t, 1, n)
	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "upsert replaces by id")

	t.Run("nearest first", func(t *testing.T) {
		hits, err := index.Similar(ctx, []float32{1, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "1", hits[0].ID)
		assert.Equal(t, "10", hits[1].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
		assert.Equal(t, "Pre-war classic six with park views", hits[0].Text)
	})

	t.Run("metadata filter", func(t *testing.T) {
		hits, err := index.Similar(ctx, []float32{1, 0, 0}, 5, model.MetadataFilter{
			"sale_price": map[string]any{"$lte": 1000000},
		})
		require.NoError(t, err)
		require.Len(t, hits, 1, "unknown price never satisfies a bound")
		assert.Equal(t, "10", hits[0].ID)

		hits, err = index.Similar(ctx, []float32{0, 1, 0}, 5, model.MetadataFilter{
			"neighborhood": map[string]any{"$icontains": "slope"},
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "3", hits[0].ID)
	})

	t.Run("rejects bad filter", func(t *testing.T) {
		_, err := index.Similar(ctx, []float32{1, 0, 0}, 5, model.MetadataFilter{"owner": "x"})
		assert.True(t, errors.Is(err, model.ErrInvalidFilter))
	})

	t.Run("rejects wrong dimensions", func(t *testing.T) {
		_, err := index.Similar(ctx, []float32{1, 0}, 5, nil)
		assert.Error(t, err)

		n, errs := index.Upsert(ctx, []model.VectorEntry{{
			ID:        "99",
			Embedding: []float32{1},
			Metadata:  model.VectorMetadata{ID: "99", Text: "x"},
		}})
		assert.Zero(t, n)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "dimensions")
	})
}

func TestRedisCacheIntegration(t *testing.T) {
	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := cache.NewRedisClient(ctx, config.RedisConfig{
		Addr:   fmt.Sprintf("%s:%s", host, port.Port()),
		Prefix: "test:",
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
