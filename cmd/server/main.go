package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"estatechat/internal/cache"
	"estatechat/internal/config"
	"estatechat/internal/handler"
	"estatechat/internal/logger"
	"estatechat/internal/repository"
	"estatechat/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging, "estatechat-server")
	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Real estate chat service")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()

	// Initialize database connection
	db, err := repository.Connect(ctx, cfg.GetPostgreSQLDSN(), cfg.PostgreSQL.MaxConnections, cfg.PostgreSQL.MaxIdleConnections)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	listings, err := repository.NewListingRepository(db, cfg.PostgreSQL.ListingsTable)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid listings table")
	}
	vectors, err := repository.NewVectorRepository(db, cfg.PostgreSQL.VectorTable, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid vector table")
	}
	log.Info().
		Str("listings_table", cfg.PostgreSQL.ListingsTable).
		Str("vector_table", cfg.PostgreSQL.VectorTable).
		Msg("Connected to PostgreSQL")

	// Embeddings, optionally cached in Redis
	var embedder service.Embedder = service.NewOpenAIEmbedder(
		service.NewOpenAIClient(cfg.Embedding.APIKey, cfg.Embedding.APIBase),
		cfg.Embedding,
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, query embeddings will not be cached")
		} else {
			defer redisClient.Close()
			embedder = service.NewCachedEmbedder(embedder, redisClient, cfg.Embedding.Model, cfg.Redis.TTL, log)
			log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL).Msg("Embedding cache enabled")
		}
	}
	if cfg.Embedding.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set, semantic retrieval will fail")
	}

	gateway, err := service.NewGateway(cfg.LLM, service.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.APIBase), log)
	if err != nil {
		log.Fatal().Err(err).Strs("supported", service.SupportedModels()).Msg("Failed to initialize language model gateway")
	}
	log.Info().
		Str("api_base", cfg.LLM.APIBase).
		Str("model", gateway.Model().ID).
		Int("max_retries", cfg.LLM.MaxRetries).
		Msg("Language model gateway initialized")

	// Initialize services
	structured := service.NewStructuredSearch(listings, cfg.Search, log)
	semantic := service.NewSemanticSearch(embedder, vectors, cfg.Search.SemanticK, log)
	coordinator := service.NewCoordinator(structured, semantic, cfg.Search, log)
	chatService := service.NewChatService(structured, coordinator, gateway, log)
	ingestor := service.NewIngestor(listings, embedder, vectors, cfg.Embedding.BatchSize, cfg.Embedding.MaxInputTokens, log)

	// Initialize handlers
	chatHandler := handler.NewChatHandler(chatService)
	searchHandler := handler.NewSearchHandler(chatService, cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	embeddingHandler := handler.NewEmbeddingHandler(ingestor, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize)

	router := newRouter(cfg, log)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := listings.Ping(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"service": "estatechat",
			"version": Version,
			"model":   gateway.Model().ID,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	limiter := handler.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	apiV1 := router.Group("/api/v1", limiter.Middleware())
	{
		apiV1.POST("/chat", chatHandler.Chat)

		apiV1.POST("/search", searchHandler.Search)
		apiV1.GET("/listings/:id", searchHandler.GetListing)

		apiV1.POST("/embeddings/batch", embeddingHandler.BatchUpdate)
	}

	setupStaticFiles(router, cfg.Server.StaticDir, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server stopped")
}

func newRouter(cfg *config.Config, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), handler.RequestID(), handler.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", handler.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{handler.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	return router
}
