package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string
	JWTSecret   string

	// Redis / background work
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Gemini
	GeminiAPIKey          string
	GeminiTier            string
	GenerationModel       string
	GoogleEmbeddingsModel string
	EmbeddingsEnabled     bool
	EmbedBatchSize        int
	EmbedMaxInputChars    int

	// Chunking
	MaxChunkSize int
	ChunkOverlap int

	// Ingestion
	IngestWorkers     int
	IngestFileTimeout int // seconds per file before the worker slot is freed
	MaxFileSize       int64
	AllowedTypes      []string

	// Retrieval
	SearchLimit     int
	SearchThreshold float64
	MatchTopDocs    int

	// Fact extraction
	ExtractMaxInputChars int

	// Confidence scoring
	ConfidenceWeightSubject    float64
	ConfidenceWeightEvidence   float64
	ConfidenceWeightScope      float64
	ConfidenceWeightMinimality float64
	ProposalFloor              float64 // below: discard silently
	ProposalAutoThreshold      float64 // at/above: auto-suggest without confirmation

	// Backfill sweep
	BackfillCron      string
	BackfillBatchSize int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/workspace_ai"),
		DBName:      getEnv("DB_NAME", "workspace_ai"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		GenerationModel:       getEnv("GEMINI_GENERATION_MODEL", "gemini-2.0-flash"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbeddingsEnabled:     getEnvBool("EMBEDDINGS_ENABLED", true),
		EmbedBatchSize:        getEnvInt("EMBED_BATCH_SIZE", 64),
		EmbedMaxInputChars:    getEnvInt("EMBED_MAX_INPUT_CHARS", 8000),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		IngestWorkers:     getEnvInt("INGEST_WORKERS", 3),
		IngestFileTimeout: getEnvInt("INGEST_FILE_TIMEOUT", 120),
		MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB per upload
		AllowedTypes:      strings.Split(getEnv("ALLOWED_FILE_TYPES", ".pdf,.txt,.md,.markdown,.xlsx"), ","),

		SearchLimit:     getEnvInt("SEARCH_LIMIT", 10),
		SearchThreshold: getEnvFloat64("SEARCH_THRESHOLD", 0.3),
		MatchTopDocs:    getEnvInt("MATCH_TOP_DOCS", 10),

		ExtractMaxInputChars: getEnvInt("EXTRACT_MAX_INPUT_CHARS", 30000),

		ConfidenceWeightSubject:    getEnvFloat64("CONFIDENCE_W_SUBJECT", 0.3),
		ConfidenceWeightEvidence:   getEnvFloat64("CONFIDENCE_W_EVIDENCE", 0.3),
		ConfidenceWeightScope:      getEnvFloat64("CONFIDENCE_W_SCOPE", 0.1),
		ConfidenceWeightMinimality: getEnvFloat64("CONFIDENCE_W_MINIMALITY", 0.3),
		ProposalFloor:              getEnvFloat64("PROPOSAL_FLOOR", 0.3),
		ProposalAutoThreshold:      getEnvFloat64("PROPOSAL_AUTO", 0.85),

		BackfillCron:      getEnv("BACKFILL_CRON", "*/10 * * * *"),
		BackfillBatchSize: getEnvInt("BACKFILL_BATCH_SIZE", 100),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
