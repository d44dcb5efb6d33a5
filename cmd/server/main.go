package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rentcore/internal/ai"
	"rentcore/internal/cache"
	"rentcore/internal/config"
	"rentcore/internal/extractor"
	"rentcore/internal/handler"
	"rentcore/internal/metrics"
	"rentcore/internal/orchestrator"
	"rentcore/internal/refdata"
	"rentcore/internal/search"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("starting rental search assistant",
		"version", Version, "build_time", BuildTime, "git_commit", GitCommit)

	gin.SetMode(cfg.Server.GinMode)

	db, err := sqlx.Connect("postgres", cfg.GetPostgreSQLDSN())
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.PostgreSQL.MaxConnections)
	db.SetMaxIdleConns(cfg.PostgreSQL.MaxIdleConnections)
	sugar.Info("connected to PostgreSQL")

	m := metrics.New()

	inference := ai.NewClient(&cfg.Inference)
	embedder := ai.NewEmbeddingProvider(inference, cfg.Inference.EmbeddingDimensions, sugar, m)

	store := cache.NewStore(db, embedder, &cfg.Cache, sugar, m)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureSchema(ctx); err != nil {
		cancel()
		sugar.Fatalw("failed to bootstrap cache schema", "error", err)
	}
	cancel()

	directory := refdata.NewDirectoryClient(&cfg.Directory)
	resolver := refdata.NewResolver(directory, cfg.Directory.TTL, cfg.Directory.DefaultProvince,
		cfg.Extractor.LocationThreshold, cfg.Extractor.AmenityThreshold, sugar)

	rules := extractor.NewRuleExtractor(resolver, &cfg.Extractor, sugar)
	llm := extractor.NewLLMExtractor(inference, resolver, sugar, m)
	listings := search.NewClient(&cfg.Search)

	pipeline := orchestrator.New(store, rules, llm, listings, sugar)

	chatHandler := handler.NewChatHandler(pipeline, sugar)
	cacheHandler := handler.NewCacheHandler(store, sugar)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.AllowedOrigins, ",")
	corsConfig.AllowMethods = strings.Split(cfg.Server.AllowedMethods, ",")
	corsConfig.AllowHeaders = strings.Split(cfg.Server.AllowedHeaders, ",")
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "rental-search-assistant",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/chat", chatHandler.Chat)

		apiV1.GET("/cache/stats", cacheHandler.Stats)
		apiV1.GET("/cache/entries", cacheHandler.Entries)
		apiV1.POST("/cache/evict", cacheHandler.Evict)
		apiV1.POST("/cache/verify", cacheHandler.Verify)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		sugar.Infow("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("forced shutdown", "error", err)
	}
	sugar.Info("server stopped")
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
