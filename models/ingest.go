package models

// Ingestion outcome states for one file. A file moves
// queued -> processing -> stored | skipped_duplicate | failed.
const (
	IngestStatusQueued     = "queued"
	IngestStatusProcessing = "processing"
	IngestStatusStored     = "stored"
	IngestStatusSkipped    = "skipped_duplicate"
	IngestStatusFailed     = "failed"
)

// IngestFile is one upload handed to the ingestion pipeline.
type IngestFile struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
	FileURL string `json:"file_url,omitempty"`
}

// IngestedFile describes a single file's outcome inside an IngestReport.
type IngestedFile struct {
	Name         string `json:"name"`
	DocumentID   string `json:"document_id,omitempty"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	ChunksStored int    `json:"chunks_stored,omitempty"`
	Error        string `json:"error,omitempty"`
}

// IngestReport is the aggregate result of a batch ingestion. Successful
// files stay committed even when siblings fail.
type IngestReport struct {
	Stored  []IngestedFile `json:"stored"`
	Skipped []IngestedFile `json:"skipped"`
	Failed  []IngestedFile `json:"failed"`
}

// ControlProgress is emitted at each stage of a control analysis run.
type ControlProgress struct {
	Step            string `json:"step"`
	ProgressPercent int    `json:"progressPercent"`
	Message         string `json:"message"`
}

// AffectedDocument groups proposed changes per existing document.
type AffectedDocument struct {
	DocumentID   string           `json:"documentId"`
	DocumentName string           `json:"documentName"`
	Changes      []ProposedChange `json:"changes"`
}

// ControlAnalysisResult is the end-to-end output of a control analysis run.
type ControlAnalysisResult struct {
	ContentAnalysis   *ContentAnalysis   `json:"contentAnalysis"`
	AffectedDocuments []AffectedDocument `json:"affectedDocuments"`
	Summary           string             `json:"summary"`
}
