package api

import (
	"strings"
	"time"

	"contract-risk-review/backend/internal/store"
)

// UploadResponse reports document statistics after extraction and segmentation.
type UploadResponse struct {
	DocumentID  uint   `json:"document_id"`
	Filename    string `json:"filename"`
	Source      string `json:"source"`
	CharCount   int    `json:"char_count"`
	ClauseCount int    `json:"clause_count"`
}

// AnalyzeRequest selects the document for an analysis run.
type AnalyzeRequest struct {
	DocumentID uint `json:"document_id"`
}

// StartAnalysisResponse describes the asynchronous analysis kickoff payload.
type StartAnalysisResponse struct {
	JobID      string    `json:"job_id"`
	DocumentID uint      `json:"document_id"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"started_at"`
}

// AnalysisDTO is the API representation for a stored clause analysis.
type AnalysisDTO struct {
	ID               uint      `json:"id"`
	Position         int       `json:"position"`
	SectionNumber    string    `json:"section_number"`
	Title            string    `json:"title"`
	ClauseType       string    `json:"clause_type"`
	OriginalText     string    `json:"original_text"`
	Summary          string    `json:"summary"`
	RiskFlag         bool      `json:"risk_flag"`
	RiskReason       string    `json:"risk_reason"`
	Confidence       float64   `json:"confidence"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AnalysesResponse holds clause results and totals.
type AnalysesResponse struct {
	Items []AnalysisDTO `json:"items"`
	Total int64         `json:"total"`
}

// DocumentDTO represents metadata for an uploaded contract.
type DocumentDTO struct {
	ID          uint       `json:"id"`
	Filename    string     `json:"filename"`
	Source      string     `json:"source"`
	CharCount   int        `json:"char_count"`
	ClauseCount int        `json:"clause_count"`
	CreatedAt   time.Time  `json:"created_at"`
	AnalyzedAt  *time.Time `json:"analyzed_at"`
}

// AnalyzeStatusResponse describes the state of the active analysis job.
type AnalyzeStatusResponse struct {
	Running      bool         `json:"running"`
	JobID        string       `json:"job_id"`
	DocumentID   uint         `json:"document_id"`
	State        string       `json:"state"`
	Message      string       `json:"message"`
	Processed    int          `json:"processed"`
	Total        int          `json:"total"`
	LastAnalysis *AnalysisDTO `json:"last_analysis,omitempty"`
}

// SummaryResponse carries the aggregate counts for a document's results.
type SummaryResponse struct {
	DocumentID   uint    `json:"document_id"`
	TotalClauses int     `json:"total_clauses"`
	RiskyClauses int     `json:"risky_clauses"`
	SafeClauses  int     `json:"safe_clauses"`
	ClauseTypes  int     `json:"clause_types"`
	RiskScore    float64 `json:"risk_score"`
	RiskLevel    string  `json:"risk_level"`
	RiskSummary  string  `json:"risk_summary"`
}

// FromModel converts a store.Analysis into the DTO representation.
func FromModel(a store.Analysis) AnalysisDTO {
	return AnalysisDTO{
		ID:               a.ID,
		Position:         a.Position,
		SectionNumber:    a.SectionNumber,
		Title:            a.Title,
		ClauseType:       a.ClauseType,
		OriginalText:     a.OriginalText,
		Summary:          strings.TrimSpace(a.Summary),
		RiskFlag:         a.RiskFlag,
		RiskReason:       strings.TrimSpace(a.RiskReason),
		Confidence:       round2(a.Confidence),
		ProcessingTimeMs: a.ProcessingTimeMs,
		CreatedAt:        a.CreatedAt,
	}
}

// DocumentFromModel converts a store.Document into a DTO.
func DocumentFromModel(d store.Document) DocumentDTO {
	return DocumentDTO{
		ID:          d.ID,
		Filename:    d.Filename,
		Source:      d.Source,
		CharCount:   d.CharCount,
		ClauseCount: d.ClauseCount,
		CreatedAt:   d.CreatedAt,
		AnalyzedAt:  d.AnalyzedAt,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
