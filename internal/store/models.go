package store

import "time"

// Document is one contract held for the current review session. The text
// column keeps the normalized contract so analysis jobs can re-segment it
// without another upload.
type Document struct {
	ID          uint   `gorm:"primaryKey"`
	Filename    string `gorm:"size:255"`
	Source      string `gorm:"size:32"` // "upload" or "text"
	Text        string `gorm:"type:text"`
	CharCount   int
	ClauseCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AnalyzedAt  *time.Time
}

// Analysis is one analyzed clause belonging to a session document. Position
// preserves the clause's place in the original contract.
type Analysis struct {
	ID               uint   `gorm:"primaryKey"`
	DocumentID       uint   `gorm:"index"`
	Position         int    `gorm:"index"`
	SectionNumber    string `gorm:"size:64"`
	Title            string `gorm:"size:255"`
	OriginalText     string `gorm:"type:text"`
	ClauseType       string `gorm:"size:128;index"`
	Summary          string `gorm:"type:text"`
	RiskFlag         bool   `gorm:"index"`
	RiskReason       string `gorm:"type:text"`
	Confidence       float64
	ProcessingTimeMs int64
	CreatedAt        time.Time
}
