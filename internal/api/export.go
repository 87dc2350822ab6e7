package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"contract-risk-review/backend/internal/store"
)

// handleExportCSV streams the full result set for a document as CSV.
func (s *Server) handleExportCSV(c *gin.Context) {
	docID, err := queryDocumentID(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	rows, _, err := s.db.ListAnalyses(store.AnalysisQuery{DocumentID: docID, Limit: -1})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="contract_analysis.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Clause Number", "Clause Type", "Original Text", "Summary", "Risk Flag", "Risk Reason", "Confidence"})
	for _, row := range rows {
		flag := "No"
		reason := ""
		if row.RiskFlag {
			flag = "Yes"
			reason = row.RiskReason
		}
		record := []string{
			strconv.Itoa(row.Position + 1),
			row.ClauseType,
			row.OriginalText,
			row.Summary,
			flag,
			reason,
			fmt.Sprintf("%.2f", row.Confidence),
		}
		if err := w.Write(record); err != nil {
			return
		}
	}
	w.Flush()
}

// handleExportJSON returns the full result set for a document as a JSON
// document suitable for download.
func (s *Server) handleExportJSON(c *gin.Context) {
	docID, err := queryDocumentID(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	rows, total, err := s.db.ListAnalyses(store.AnalysisQuery{DocumentID: docID, Limit: -1})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	items := make([]AnalysisDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromModel(row))
	}

	c.Header("Content-Disposition", `attachment; filename="contract_analysis.json"`)
	c.JSON(http.StatusOK, gin.H{
		"document_id": docID,
		"exported_at": time.Now().UTC(),
		"total":       total,
		"items":       items,
	})
}
