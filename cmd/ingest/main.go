// Package main provides the listing ingestion CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"estatechat/internal/config"
	"estatechat/internal/logger"
	"estatechat/internal/repository"
	"estatechat/internal/service"
)

var (
	// Global flags
	outputJSON bool

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "estatechat-ingest",
	Short: "Index listing descriptions into the vector store",
	Long: `estatechat-ingest embeds every listing that has a description and writes
the vector, together with its filterable metadata, into the vector table.

Re-running is safe: entries are upserted by listing id.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log = logger.New(cfg.Logging, "estatechat-ingest")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print the run summary as JSON")
	rootCmd.AddCommand(newRunCmd(), newStatusCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		limit      int
		batchSize  int
		initSchema bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Embed and upsert listing descriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := repository.Connect(ctx, cfg.GetPostgreSQLDSN(), cfg.PostgreSQL.MaxConnections, cfg.PostgreSQL.MaxIdleConnections)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()

			listings, err := repository.NewListingRepository(db, cfg.PostgreSQL.ListingsTable)
			if err != nil {
				return err
			}
			vectors, err := repository.NewVectorRepository(db, cfg.PostgreSQL.VectorTable, cfg.Embedding.Dimensions)
			if err != nil {
				return err
			}

			if initSchema {
				if err := vectors.EnsureSchema(ctx); err != nil {
					return fmt.Errorf("init schema: %w", err)
				}
				log.Info().Str("table", cfg.PostgreSQL.VectorTable).Msg("vector table ready")
			}

			embedder := service.NewOpenAIEmbedder(
				service.NewOpenAIClient(cfg.Embedding.APIKey, cfg.Embedding.APIBase),
				cfg.Embedding,
			)

			if batchSize <= 0 {
				batchSize = cfg.Embedding.BatchSize
			}
			ingestor := service.NewIngestor(listings, embedder, vectors, batchSize, cfg.Embedding.MaxInputTokens, log)

			start := time.Now()
			stats, err := ingestor.Run(ctx, limit)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			total, err := vectors.Count(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("count vectors")
			}
			return printStats(stats, total, time.Since(start))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many listings (0 = all)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "listings per embedding request (default from EMBEDDING_BATCH_SIZE)")
	cmd.Flags().BoolVar(&initSchema, "init-schema", false, "create the vector extension and table if missing")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many listings are indexed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			db, err := repository.Connect(ctx, cfg.GetPostgreSQLDSN(), 2, 1)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()

			vectors, err := repository.NewVectorRepository(db, cfg.PostgreSQL.VectorTable, cfg.Embedding.Dimensions)
			if err != nil {
				return err
			}
			total, err := vectors.Count(ctx)
			if err != nil {
				return fmt.Errorf("count vectors: %w", err)
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"table":   cfg.PostgreSQL.VectorTable,
					"indexed": total,
				})
			}
			fmt.Printf("%s: %d listings indexed\n", cfg.PostgreSQL.VectorTable, total)
			return nil
		},
	}
}

func printStats(stats service.IngestStats, total int, took time.Duration) error {
	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"scanned":       stats.Scanned,
			"skipped":       stats.Skipped,
			"indexed":       stats.Indexed,
			"failed":        stats.Failed,
			"errors":        stats.Errors,
			"total_indexed": total,
			"took_ms":       took.Milliseconds(),
		})
	}

	fmt.Printf("Scanned:  %d\n", stats.Scanned)
	fmt.Printf("Skipped:  %d (no description)\n", stats.Skipped)
	fmt.Printf("Indexed:  %d\n", stats.Indexed)
	fmt.Printf("Failed:   %d\n", stats.Failed)
	for _, e := range stats.Errors {
		fmt.Printf("  - %s\n", e)
	}
	fmt.Printf("Total in index: %d (%s)\n", total, took.Round(time.Millisecond))
	return nil
}
