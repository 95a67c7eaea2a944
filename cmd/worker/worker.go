package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"workspace-ai-backend/internal/ai"
	"workspace-ai-backend/internal/config"
	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/internal/queue"
	"workspace-ai-backend/internal/scheduler"
	"workspace-ai-backend/repository"
	"workspace-ai-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.DBName)

	var embedder ai.Embedder
	if cfg.GeminiAPIKey != "" && cfg.EmbeddingsEnabled {
		geminiClient, err := ai.NewGeminiClient(context.Background(), ai.GeminiOptions{
			APIKey:          cfg.GeminiAPIKey,
			Tier:            cfg.GeminiTier,
			GenerationModel: cfg.GenerationModel,
			EmbeddingModel:  cfg.GoogleEmbeddingsModel,
			MaxInputChars:   cfg.EmbedMaxInputChars,
		})
		if err != nil {
			log.Fatal("Failed to initialize Gemini client:", err)
		}
		defer geminiClient.Close()
		embedder = geminiClient
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
	})
	backfill := services.NewEmbeddingBackfill(chunkRepo, embedder, cfg.BackfillBatchSize)

	redisOpt, err := queue.RedisOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(docRepo, memory, backfill)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskReindexDocument, processor.HandleReindex)
	mux.HandleFunc(queue.TaskEmbedBackfill, processor.HandleBackfill)

	// Periodic sweep picks up chunks stored while the embedding provider
	// was unavailable.
	sched := scheduler.New()
	if err := sched.ScheduleCron("embed-backfill", cfg.BackfillCron, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_, err := backfill.Run(ctx)
		return err
	}); err != nil {
		log.Fatal("Failed to schedule backfill sweep:", err)
	}
	sched.Start()
	defer sched.Stop()

	logger.Info("worker starting", "redis", cfg.RedisURL, "backfill_cron", cfg.BackfillCron)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
