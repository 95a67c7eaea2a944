package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"workspace-ai-backend/internal/ai"
	"workspace-ai-backend/internal/config"
	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/internal/queue"
	"workspace-ai-backend/internal/telemetry"
	"workspace-ai-backend/middleware"
	"workspace-ai-backend/repository"
	"workspace-ai-backend/routes"
	"workspace-ai-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("workspace-ai-backend")
	if err != nil {
		logger.Warn("tracer init failed, continuing without traces", "error", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics init failed, continuing without metrics", "error", err)
		metrics = nil
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	redisOpt, err := queue.RedisOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	// AI provider. A missing API key disables generation and embeddings;
	// retrieval falls back to lexical search.
	var generator ai.TextGenerator
	var embedder ai.Embedder
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := ai.NewGeminiClient(context.Background(), ai.GeminiOptions{
			APIKey:          cfg.GeminiAPIKey,
			Tier:            cfg.GeminiTier,
			GenerationModel: cfg.GenerationModel,
			EmbeddingModel:  cfg.GoogleEmbeddingsModel,
			MaxInputChars:   cfg.EmbedMaxInputChars,
			Metrics:         metrics,
		})
		if err != nil {
			log.Fatal("Failed to initialize Gemini client:", err)
		}
		defer geminiClient.Close()
		generator = geminiClient
		if cfg.EmbeddingsEnabled {
			embedder = geminiClient
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, running in degraded mode")
	}

	docRepo := repository.NewMongoDocumentRepository(db)
	chunkRepo := repository.NewMongoChunkRepository(db)
	messageRepo := repository.NewMongoMessageRepository(db)

	memory := services.NewMemoryStore(services.MemoryStoreOptions{
		Chunks:          chunkRepo,
		Messages:        messageRepo,
		Embedder:        embedder,
		Chunker:         services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap),
		EmbedBatchSize:  cfg.EmbedBatchSize,
		SearchLimit:     cfg.SearchLimit,
		SearchThreshold: cfg.SearchThreshold,
		Metrics:         metrics,
	})

	ingestor := services.NewIngestor(services.IngestorOptions{
		Documents:    docRepo,
		Memory:       memory,
		Metrics:      metrics,
		Workers:      cfg.IngestWorkers,
		FileTimeout:  time.Duration(cfg.IngestFileTimeout) * time.Second,
		MaxFileSize:  cfg.MaxFileSize,
		AllowedTypes: cfg.AllowedTypes,
	})

	confidence := services.ConfidenceConfig{
		SubjectWeight:    cfg.ConfidenceWeightSubject,
		EvidenceWeight:   cfg.ConfidenceWeightEvidence,
		ScopeWeight:      cfg.ConfidenceWeightScope,
		MinimalityWeight: cfg.ConfidenceWeightMinimality,
		Floor:            cfg.ProposalFloor,
		AutoThreshold:    cfg.ProposalAutoThreshold,
	}

	extractor := services.NewFactExtractor(generator, cfg.ExtractMaxInputChars)
	matcher := services.NewDocumentMatcher(memory, cfg.MatchTopDocs)
	proposer := services.NewChangeProposer(generator, docRepo, confidence, metrics)
	applicator := services.NewChangeApplicator(docRepo, memory)
	progressStore := services.NewProgressStore(rdb)
	control := services.NewControlService(extractor, matcher, proposer, progressStore)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	routes.SetupDocumentRoutes(router, cfg, ingestor, docRepo, queueClient, authMiddleware)
	routes.SetupMemoryRoutes(router, memory, authMiddleware)
	routes.SetupControlRoutes(router, control, progressStore, applicator, authMiddleware)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
