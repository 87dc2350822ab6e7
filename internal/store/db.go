package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// inMemoryDSN keeps the session store alive only for the process lifetime;
// nothing is persisted across sessions.
const inMemoryDSN = "file::memory:?cache=shared"

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
}

// Open initializes the SQLite-backed session store. An empty path selects the
// in-memory database.
func Open(path string, silent bool) (*Database, error) {
	dsn := strings.TrimSpace(path)
	fileBacked := dsn != ""
	if !fileBacked {
		dsn = inMemoryDSN
	}

	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Document{}, &Analysis{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if fileBacked {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			logrus.WithError(err).Warn("enable WAL mode")
		}
		if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
			logrus.WithError(err).Warn("set synchronous pragma")
		}
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateDocument persists a new session document.
func (d *Database) CreateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	return d.gorm.Create(doc).Error
}

// GetDocument fetches a document by ID.
func (d *Database) GetDocument(id uint) (*Document, error) {
	var doc Document
	if err := d.gorm.First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns all session documents, most recent first.
func (d *Database) ListDocuments() ([]Document, error) {
	var docs []Document
	err := d.gorm.Order("created_at DESC").Find(&docs).Error
	return docs, err
}

// MarkDocumentAnalyzed records the completion of an analysis run.
func (d *Database) MarkDocumentAnalyzed(id uint, clauseCount int) error {
	now := time.Now().UTC()
	return d.gorm.Model(&Document{}).
		Where("id = ?", id).
		Updates(map[string]any{"analyzed_at": now, "clause_count": clauseCount}).Error
}

// ReplaceAnalyses drops any prior results for the document and stores the new
// set in one transaction.
func (d *Database) ReplaceAnalyses(documentID uint, analyses []Analysis) error {
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&Analysis{}).Error; err != nil {
			return err
		}
		if len(analyses) == 0 {
			return nil
		}
		for i := range analyses {
			analyses[i].DocumentID = documentID
		}
		return tx.Create(&analyses).Error
	})
}

// ClearAnalyses removes existing results for the document ahead of a fresh run.
func (d *Database) ClearAnalyses(documentID uint) error {
	return d.gorm.Where("document_id = ?", documentID).Delete(&Analysis{}).Error
}

// SaveAnalysis stores a single clause result.
func (d *Database) SaveAnalysis(analysis *Analysis) error {
	if analysis == nil {
		return fmt.Errorf("analysis is nil")
	}
	return d.gorm.Create(analysis).Error
}

// AnalysisQuery filters and paginates clause results.
type AnalysisQuery struct {
	DocumentID uint
	Query      string
	RiskOnly   bool
	Offset     int
	Limit      int
}

// ListAnalyses returns matching results ordered by clause position, plus the
// unpaginated total. Limit < 0 disables pagination.
func (d *Database) ListAnalyses(q AnalysisQuery) ([]Analysis, int64, error) {
	tx := d.gorm.Model(&Analysis{})
	if q.DocumentID != 0 {
		tx = tx.Where("document_id = ?", q.DocumentID)
	}
	if q.RiskOnly {
		tx = tx.Where("risk_flag = ?", true)
	}
	if trimmed := strings.TrimSpace(q.Query); trimmed != "" {
		like := "%" + trimmed + "%"
		tx = tx.Where("clause_type LIKE ? OR summary LIKE ? OR original_text LIKE ?", like, like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	tx = tx.Order("position ASC")
	if q.Limit >= 0 {
		limit := q.Limit
		if limit == 0 {
			limit = 100
		}
		tx = tx.Offset(q.Offset).Limit(limit)
	}

	var rows []Analysis
	if err := tx.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountAnalyses returns the number of stored results for a document.
func (d *Database) CountAnalyses(documentID uint) (int64, error) {
	var count int64
	err := d.gorm.Model(&Analysis{}).Where("document_id = ?", documentID).Count(&count).Error
	return count, err
}

// CountRisky returns the number of risk-flagged results for a document.
func (d *Database) CountRisky(documentID uint) (int64, error) {
	var count int64
	err := d.gorm.Model(&Analysis{}).
		Where("document_id = ? AND risk_flag = ?", documentID, true).
		Count(&count).Error
	return count, err
}

// DistinctClauseTypes lists the distinct clause type labels for a document.
func (d *Database) DistinctClauseTypes(documentID uint) ([]string, error) {
	var types []string
	err := d.gorm.Model(&Analysis{}).
		Where("document_id = ?", documentID).
		Distinct("clause_type").
		Order("clause_type ASC").
		Pluck("clause_type", &types).Error
	return types, err
}
