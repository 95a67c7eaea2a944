package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/internal/telemetry"
	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
)

const initialDocumentVersion = "1.0"

// ProgressFunc receives batch progress as files finish processing.
type ProgressFunc func(processed, total int)

// Ingestor runs batch file ingestion: extract, fingerprint, dedup, store,
// index. Files are processed concurrently under a bounded worker pool and
// each file succeeds or fails on its own.
type Ingestor struct {
	docs    repository.DocumentRepository
	memory  *MemoryStore
	metrics *telemetry.Metrics // optional

	workers      int
	fileTimeout  time.Duration
	maxFileSize  int64
	allowedTypes map[string]bool
}

// IngestorOptions configures an Ingestor.
type IngestorOptions struct {
	Documents    repository.DocumentRepository
	Memory       *MemoryStore
	Metrics      *telemetry.Metrics
	Workers      int
	FileTimeout  time.Duration
	MaxFileSize  int64
	AllowedTypes []string
}

func NewIngestor(opts IngestorOptions) *Ingestor {
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = 2 * time.Minute
	}
	allowed := make(map[string]bool, len(opts.AllowedTypes))
	for _, ext := range opts.AllowedTypes {
		allowed[strings.ToLower(ext)] = true
	}
	return &Ingestor{
		docs:         opts.Documents,
		memory:       opts.Memory,
		metrics:      opts.Metrics,
		workers:      opts.Workers,
		fileTimeout:  opts.FileTimeout,
		maxFileSize:  opts.MaxFileSize,
		allowedTypes: allowed,
	}
}

type ingestOutcome struct {
	status string
	file   models.IngestedFile
}

// IngestBatch processes a batch of uploads and returns the per-file report.
// Dedup is by content fingerprint, both against stored documents and within
// the batch itself; the first occurrence in the batch wins.
func (ing *Ingestor) IngestBatch(ctx context.Context, projectID, uploadedBy string, files []models.IngestFile, progress ProgressFunc) (*models.IngestReport, error) {
	if len(files) == 0 {
		return &models.IngestReport{
			Stored:  []models.IngestedFile{},
			Skipped: []models.IngestedFile{},
			Failed:  []models.IngestedFile{},
		}, nil
	}

	// Claims a fingerprint for the first file in the batch that carries it.
	var claimMu sync.Mutex
	claimed := make(map[string]string)
	claim := func(fingerprint, name string) (string, bool) {
		claimMu.Lock()
		defer claimMu.Unlock()
		if owner, ok := claimed[fingerprint]; ok {
			return owner, false
		}
		claimed[fingerprint] = name
		return name, true
	}

	outcomes := make([]ingestOutcome, len(files))
	permits := make(chan struct{}, ing.workers)
	var processed int
	var progressMu sync.Mutex
	var wg sync.WaitGroup

	for i := range files {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			permits <- struct{}{}
			defer func() { <-permits }()

			start := time.Now()
			outcomes[idx] = ing.ingestOne(ctx, projectID, uploadedBy, files[idx], claim)
			if ing.metrics != nil {
				ing.metrics.RecordIngestOutcome(outcomes[idx].status, time.Since(start).Seconds())
			}

			if progress != nil {
				progressMu.Lock()
				processed++
				progress(processed, len(files))
				progressMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	report := &models.IngestReport{
		Stored:  []models.IngestedFile{},
		Skipped: []models.IngestedFile{},
		Failed:  []models.IngestedFile{},
	}
	for _, outcome := range outcomes {
		switch outcome.status {
		case models.IngestStatusStored:
			report.Stored = append(report.Stored, outcome.file)
		case models.IngestStatusSkipped:
			report.Skipped = append(report.Skipped, outcome.file)
		default:
			report.Failed = append(report.Failed, outcome.file)
		}
	}
	return report, nil
}

func (ing *Ingestor) ingestOne(ctx context.Context, projectID, uploadedBy string, file models.IngestFile, claim func(fingerprint, name string) (string, bool)) ingestOutcome {
	fileCtx, cancel := context.WithTimeout(ctx, ing.fileTimeout)
	defer cancel()

	fail := func(err error) ingestOutcome {
		logger.Warn("file ingestion failed", "project_id", projectID, "file", file.Name, "error", err)
		return ingestOutcome{
			status: models.IngestStatusFailed,
			file:   models.IngestedFile{Name: file.Name, Error: err.Error()},
		}
	}

	if err := ing.validate(file); err != nil {
		return fail(err)
	}

	fingerprint := Fingerprint(file.Content)

	// In-batch dedup: two identical uploads in one batch store once.
	if owner, ok := claim(fingerprint, file.Name); !ok {
		return ingestOutcome{
			status: models.IngestStatusSkipped,
			file: models.IngestedFile{
				Name:        file.Name,
				Fingerprint: fingerprint,
				Error:       fmt.Sprintf("duplicate of %s in this batch", owner),
			},
		}
	}

	existing, err := ing.docs.GetByContentHash(fileCtx, projectID, fingerprint)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fail(fmt.Errorf("dedup lookup failed: %w", err))
	}
	if existing != nil {
		return ingestOutcome{
			status: models.IngestStatusSkipped,
			file: models.IngestedFile{
				Name:        file.Name,
				DocumentID:  existing.DocumentID,
				Fingerprint: fingerprint,
			},
		}
	}

	text, err := ExtractFileText(file.Name, file.Content)
	if err != nil {
		return fail(err)
	}
	if strings.TrimSpace(text) == "" {
		return fail(fmt.Errorf("no extractable text"))
	}

	doc := &models.Document{
		DocumentID:  uuid.NewString(),
		ProjectID:   projectID,
		Name:        file.Name,
		Content:     text,
		ContentHash: fingerprint,
		FileURL:     file.FileURL,
		Version:     initialDocumentVersion,
		CreatedBy:   uploadedBy,
	}
	if err := ing.docs.Create(fileCtx, doc); err != nil {
		return fail(fmt.Errorf("failed to store document: %w", err))
	}

	stored, err := ing.memory.StoreDocument(fileCtx, projectID, DocumentIndexRequest{
		DocumentID:   doc.DocumentID,
		DocumentName: doc.Name,
		Content:      text,
		ContentHash:  fingerprint,
	})
	if err != nil {
		// The document record is committed; indexing can be repaired by a
		// later reindex, so report the failure without rolling back.
		return fail(fmt.Errorf("failed to index document %s: %w", doc.DocumentID, err))
	}
	if ing.metrics != nil && stored > 0 {
		ing.metrics.RecordChunksStored(int64(stored), projectID)
	}

	logger.Info("file ingested", "project_id", projectID, "file", file.Name, "document_id", doc.DocumentID, "chunks", stored)
	return ingestOutcome{
		status: models.IngestStatusStored,
		file: models.IngestedFile{
			Name:         file.Name,
			DocumentID:   doc.DocumentID,
			Fingerprint:  fingerprint,
			ChunksStored: stored,
		},
	}
}

func (ing *Ingestor) validate(file models.IngestFile) error {
	if len(file.Content) == 0 {
		return fmt.Errorf("empty file")
	}
	if ing.maxFileSize > 0 && int64(len(file.Content)) > ing.maxFileSize {
		return fmt.Errorf("file exceeds maximum size of %d bytes", ing.maxFileSize)
	}
	if len(ing.allowedTypes) > 0 {
		ext := strings.ToLower(filepath.Ext(file.Name))
		if !ing.allowedTypes[ext] {
			return &ErrUnsupportedFileType{Extension: ext}
		}
	}
	return nil
}
