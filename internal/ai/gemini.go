package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"workspace-ai-backend/internal/telemetry"
)

// GeminiClient implements TextGenerator and Embedder on top of the Google
// Generative AI API, guarded by a circuit breaker and a client-side rate
// limiter so batch pipelines stay inside provider quotas.
type GeminiClient struct {
	client          *genai.Client
	breaker         *gobreaker.CircuitBreaker
	rateLimiter     *rate.Limiter
	tokenCounter    *TokenCounter
	metrics         *telemetry.Metrics // optional
	generationModel string
	embeddingModel  string
	maxInputChars   int
	tier            string
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

// GeminiOptions configures a GeminiClient.
type GeminiOptions struct {
	APIKey          string
	Tier            string
	GenerationModel string
	EmbeddingModel  string
	MaxInputChars   int
	Metrics         *telemetry.Metrics
}

func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, ErrProviderUnavailable
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, err
	}

	if opts.GenerationModel == "" {
		opts.GenerationModel = "gemini-2.0-flash"
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = "text-embedding-004"
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = 8000
	}

	limits := getRateLimits(opts.Tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
			if opts.Metrics != nil {
				opts.Metrics.RecordCircuitBreakerState(name, to.String())
			}
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &GeminiClient{
		client:          client,
		breaker:         breaker,
		rateLimiter:     rateLimiter,
		tokenCounter:    &TokenCounter{limits: limits},
		metrics:         opts.Metrics,
		generationModel: opts.GenerationModel,
		embeddingModel:  opts.EmbeddingModel,
		maxInputChars:   opts.MaxInputChars,
		tier:            opts.Tier,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// GenerateText runs a plain generation call.
func (gc *GeminiClient) GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_text")
	defer span.End()

	resp, err := gc.generate(ctx, prompt, systemPrompt, "")
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	text := collectText(resp)
	span.SetAttributes(attribute.Int("gemini.response_chars", len(text)))
	return text, nil
}

// GenerateJSON runs a generation call constrained to JSON output and
// decodes the result into out.
func (gc *GeminiClient) GenerateJSON(ctx context.Context, prompt, systemPrompt string, out any) error {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_json")
	defer span.End()

	resp, err := gc.generate(ctx, prompt, systemPrompt, "application/json")
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return err
	}

	raw := strings.TrimSpace(collectText(resp))
	// Some model versions still wrap JSON in a code fence despite the MIME hint
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), out); err != nil {
		span.SetAttributes(attribute.Bool("gemini.decode_error", true))
		return fmt.Errorf("failed to decode structured response: %w", err)
	}
	return nil
}

func (gc *GeminiClient) generate(ctx context.Context, prompt, systemPrompt, mimeType string) (*genai.GenerateContentResponse, error) {
	if len(prompt) > gc.maxInputChars*8 {
		prompt = prompt[:gc.maxInputChars*8]
	}

	// Estimate tokens BEFORE making request (1 token ≈ 4 characters)
	estimatedTokens := (len(prompt) + len(systemPrompt)) / 4
	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		return nil, fmt.Errorf("token budget exhausted: %w", ErrRateLimited)
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.generationModel)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(4096)
		if mimeType != "" {
			model.ResponseMIMEType = mimeType
		}
		if systemPrompt != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(systemPrompt)},
			}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, classifyProviderError(err)
		}

		tokens := extractTokenUsage(resp)
		gc.tokenCounter.RecordUsage(tokens, 1)
		if gc.metrics != nil {
			gc.metrics.RecordTokensUsed(int64(tokens), gc.generationModel)
		}
		return resp, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("circuit open: %w", ErrProviderUnavailable)
		}
		return nil, err
	}

	return result.(*genai.GenerateContentResponse), nil
}

// EmbedText embeds a single text, truncated to a provider-safe length.
func (gc *GeminiClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := gc.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one provider call, preserving input order.
// Inputs are truncated to the configured character cap first.
func (gc *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		em := gc.client.EmbeddingModel(gc.embeddingModel)
		batch := em.NewBatch()
		for _, text := range texts {
			batch = batch.AddContent(genai.Text(TruncateInput(text, gc.maxInputChars)))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, classifyProviderError(err)
		}
		if err := checkEmbeddingCount(resp, len(texts)); err != nil {
			return nil, err
		}

		vectors := make([][]float32, len(texts))
		for i, emb := range resp.Embeddings {
			if emb != nil {
				vectors[i] = emb.Values
			}
		}
		return vectors, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("circuit open: %w", ErrProviderUnavailable)
		}
		return nil, err
	}

	return result.([][]float32), nil
}

// checkEmbeddingCount validates that the provider returned one embedding
// per input. A nil response counts as zero embeddings.
func checkEmbeddingCount(resp *genai.BatchEmbedContentsResponse, want int) error {
	got := 0
	if resp != nil {
		got = len(resp.Embeddings)
	}
	if got != want {
		return fmt.Errorf("embedding count mismatch: got %d for %d inputs", got, want)
	}
	return nil
}

// Model returns the embedding model identifier used to tag stored vectors.
func (gc *GeminiClient) Model() string {
	return gc.embeddingModel
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}

// TruncateInput caps text at max bytes without splitting a UTF-8 rune.
func TruncateInput(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// classifyProviderError maps provider errors onto the package sentinels so
// callers can tell retryable rate limits from hard failures.
func classifyProviderError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%v: %w", err, ErrRateLimited)
		case http.StatusServiceUnavailable, http.StatusBadGateway:
			return fmt.Errorf("%v: %w", err, ErrProviderUnavailable)
		}
	}
	if strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		return fmt.Errorf("%v: %w", err, ErrRateLimited)
	}
	return err
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// extractTokenUsage reads actual usage from the response metadata, falling
// back to a 4-chars-per-token estimate.
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	estimated := len(collectText(resp)) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

func collectText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
