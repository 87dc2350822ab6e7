package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"contract-risk-review/backend/internal/store"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv, err := NewServer(Config{
		DBPath:    filepath.Join(t.TempDir(), "api.db"),
		SilentDB:  true,
		DisableAI: true,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.db.Close() })

	router, err := srv.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return srv, router
}

func postText(t *testing.T, router *gin.Engine, text string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("text", text); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const sampleContract = "1. Term. This agreement remains in effect for one year from the effective date unless renewed.\n\n" +
	"2. Termination. Either party may terminate for convenience with thirty days prior written notice to the other.\n\n" +
	"3. Indemnification. Supplier shall indemnify and hold harmless the customer against third party claims."

func TestUploadTextDocument(t *testing.T) {
	_, router := newTestServer(t)

	rec := postText(t, router, sampleContract)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DocumentID == 0 {
		t.Fatal("expected a document id")
	}
	if resp.ClauseCount != 3 {
		t.Fatalf("expected 3 clauses got %d", resp.ClauseCount)
	}
	if resp.Source != "text" {
		t.Fatalf("expected text source got %q", resp.Source)
	}
}

func TestUploadRejectsEmptyText(t *testing.T) {
	_, router := newTestServer(t)

	rec := postText(t, router, "   \n\n  ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	_, router := newTestServer(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("contract", "notes.xlsx")
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := part.Write([]byte("binary junk")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unsupported") {
		t.Fatalf("expected unsupported-format error, got %s", rec.Body.String())
	}
}

func TestAnalyzeRequiresKnownDocument(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing document_id got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"document_id": 999}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown document got %d", rec.Code)
	}
}

// With AI disabled every clause falls back immediately, so the full
// upload-analyze-results loop completes quickly and deterministically.
func TestAnalyzeLifecycle(t *testing.T) {
	_, router := newTestServer(t)

	rec := postText(t, router, sampleContract)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var uploaded UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode upload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"document_id": `+strconv.Itoa(int(uploaded.DocumentID))+`}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
	}
	var started StartAnalysisResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if started.Total != uploaded.ClauseCount {
		t.Fatalf("expected %d clauses queued got %d", uploaded.ClauseCount, started.Total)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		req = httptest.NewRequest(http.MethodGet, "/api/analyze/status", nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		var status AnalyzeStatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if !status.Running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("analysis did not finish in time")
		}
		time.Sleep(20 * time.Millisecond)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/results?document_id="+strconv.Itoa(int(uploaded.DocumentID)), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("results: %d", rec.Code)
	}
	var results AnalysesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if int(results.Total) != uploaded.ClauseCount {
		t.Fatalf("expected %d results got %d", uploaded.ClauseCount, results.Total)
	}
	for i, item := range results.Items {
		if item.Position != i {
			t.Fatalf("results out of order: %+v", results.Items)
		}
		if item.ClauseType != "Unknown" || !item.RiskFlag {
			t.Fatalf("expected manual-review fallback record, got %+v", item)
		}
	}
}

func TestResultsFiltersAndSummary(t *testing.T) {
	srv, router := newTestServer(t)

	doc := &store.Document{Filename: "contract.txt", Source: "text", Text: sampleContract, CharCount: len(sampleContract)}
	if err := srv.db.CreateDocument(doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	analyses := []store.Analysis{
		{Position: 0, ClauseType: "Term", Summary: "One year term.", Confidence: 0.9},
		{Position: 1, ClauseType: "Termination", Summary: "Thirty day exit.", RiskFlag: true, RiskReason: "Termination for convenience", Confidence: 0.8},
		{Position: 2, ClauseType: "Indemnification", Summary: "Supplier indemnifies.", RiskFlag: true, RiskReason: "Broad indemnity", Confidence: 0.85},
	}
	if err := srv.db.ReplaceAnalyses(doc.ID, analyses); err != nil {
		t.Fatalf("seed analyses: %v", err)
	}

	docParam := strconv.Itoa(int(doc.ID))

	req := httptest.NewRequest(http.MethodGet, "/api/results?document_id="+docParam+"&riskOnly=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var risky AnalysesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &risky); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if risky.Total != 2 {
		t.Fatalf("expected 2 risky rows got %d", risky.Total)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/results?document_id="+docParam+"&q=indemnifies", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var filtered AnalysesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if filtered.Total != 1 || filtered.Items[0].ClauseType != "Indemnification" {
		t.Fatalf("text filter failed: %+v", filtered)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/summary?document_id="+docParam, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var summary SummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalClauses != 3 || summary.RiskyClauses != 2 || summary.SafeClauses != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.RiskLevel != "High" {
		t.Fatalf("expected High risk level for 2/3 flagged, got %q", summary.RiskLevel)
	}
}

func TestExportCSV(t *testing.T) {
	srv, router := newTestServer(t)

	doc := &store.Document{Filename: "contract.txt", Source: "text", Text: sampleContract}
	if err := srv.db.CreateDocument(doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	analyses := []store.Analysis{
		{Position: 0, ClauseType: "Term", Summary: "One year.", RiskReason: "stale reason that must not export", Confidence: 0.9},
		{Position: 1, ClauseType: "Termination", Summary: "Exit clause.", RiskFlag: true, RiskReason: "Termination for convenience", Confidence: 0.8},
	}
	if err := srv.db.ReplaceAnalyses(doc.ID, analyses); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/export.csv?document_id="+strconv.Itoa(int(doc.ID)), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "No") || strings.Contains(lines[1], "stale reason") {
		t.Fatalf("unflagged row must export No with empty reason: %s", lines[1])
	}
	if !strings.Contains(lines[2], "Yes") || !strings.Contains(lines[2], "Termination for convenience") {
		t.Fatalf("flagged row missing reason: %s", lines[2])
	}
}

func TestCancelWithoutJob(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/analyze/some-job", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
