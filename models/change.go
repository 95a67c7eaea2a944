package models

// ProposedChange status values
const (
	ChangeStatusPending  = "pending"
	ChangeStatusApproved = "approved"
	ChangeStatusRejected = "rejected"
	ChangeStatusApplied  = "applied"
)

// ConfidenceBreakdown holds the individual factors behind a change's
// overall score. All factors are in [0,1].
type ConfidenceBreakdown struct {
	SubjectMatch     float64 `json:"subjectMatch"`
	FactualAlignment float64 `json:"factualAlignment"`
	ScopeContainment float64 `json:"scopeContainment"`
	ChangeMinimality float64 `json:"changeMinimality"`
	Overall          float64 `json:"overall"`
}

// ChangeEvidence ties a proposed change back to a quotable source span.
type ChangeEvidence struct {
	SourceQuote    string              `json:"sourceQuote"`
	SourceLocation string              `json:"sourceLocation"`
	Confidence     ConfidenceBreakdown `json:"confidence"`
}

// ProposedChange is one surgical edit proposed against an existing document.
// OriginalText must be an exact substring of the target document at proposal
// time; re-location against the live document happens again at apply time.
type ProposedChange struct {
	ID                       string         `json:"id"`
	DocumentID               string         `json:"documentId"`
	DocumentName             string         `json:"documentName,omitempty"`
	SectionName              string         `json:"sectionName"`
	OriginalText             string         `json:"originalText"`
	ProposedText             string         `json:"proposedText"`
	StartIndex               *int           `json:"startIndex,omitempty"`
	EndIndex                 *int           `json:"endIndex,omitempty"`
	Status                   string         `json:"status"`
	Evidence                 ChangeEvidence `json:"evidence"`
	ScopeJustification       string         `json:"scopeJustification"`
	RequiresUserConfirmation bool           `json:"requiresUserConfirmation"`
}

// ApplyResult reports the outcome of applying approved changes to one document.
type ApplyResult struct {
	DocumentID string `json:"documentId"`
	ChangeID   string `json:"changeId"`
	Success    bool   `json:"success"`
	NewVersion string `json:"newVersion,omitempty"`
	Error      string `json:"error,omitempty"`
	// Warning flags a change that was persisted but left followup work
	// behind, such as a failed reindex.
	Warning string `json:"warning,omitempty"`
}
