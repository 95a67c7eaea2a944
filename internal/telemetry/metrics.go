package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	ChunksStored        metric.Int64Counter
	IngestOutcomes      metric.Int64Counter
	IngestDuration      metric.Float64Histogram
	SearchFallbacks     metric.Int64Counter
	ProposalsFiltered   metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("workspace-ai-backend")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	chunksStored, err := meter.Int64Counter(
		"memory.chunks.stored",
		metric.WithDescription("Document chunks written to the memory store"),
	)
	if err != nil {
		return nil, err
	}

	ingestOutcomes, err := meter.Int64Counter(
		"ingest.files.total",
		metric.WithDescription("Ingested files by outcome"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"ingest.file.duration",
		metric.WithDescription("Per-file ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchFallbacks, err := meter.Int64Counter(
		"memory.search.fallbacks",
		metric.WithDescription("Searches served by the lexical fallback path"),
	)
	if err != nil {
		return nil, err
	}

	proposalsFiltered, err := meter.Int64Counter(
		"control.proposals.total",
		metric.WithDescription("Proposed changes by confidence band"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		ChunksStored:        chunksStored,
		IngestOutcomes:      ingestOutcomes,
		IngestDuration:      ingestDuration,
		SearchFallbacks:     searchFallbacks,
		ProposalsFiltered:   proposalsFiltered,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordChunksStored records chunks written for a project
func (m *Metrics) RecordChunksStored(count int64, projectID string) {
	attrs := []attribute.KeyValue{
		attribute.String("project_id", projectID),
	}

	m.ChunksStored.Add(context.Background(), count, metric.WithAttributes(attrs...))
}

// RecordIngestOutcome records one file's ingestion outcome
func (m *Metrics) RecordIngestOutcome(status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("ingest.status", status),
	}

	m.IngestOutcomes.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.IngestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordSearchFallback records a search served without embeddings
func (m *Metrics) RecordSearchFallback(reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("fallback.reason", reason),
	}

	m.SearchFallbacks.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordProposal records a proposed change and the band it landed in
func (m *Metrics) RecordProposal(band string) {
	attrs := []attribute.KeyValue{
		attribute.String("confidence.band", band),
	}

	m.ProposalsFiltered.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
