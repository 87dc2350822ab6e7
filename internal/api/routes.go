package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"contract-risk-review/backend/internal/ai"
	"contract-risk-review/backend/internal/analyzer"
	"contract-risk-review/backend/internal/clause"
	"contract-risk-review/backend/internal/extract"
	"contract-risk-review/backend/internal/risk"
	"contract-risk-review/backend/internal/store"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	CatalogPath    string
	PromptPath     string
	AllowedOrigins []string
	SilentDB       bool
	AIConfig       ai.Config
	FallbackAI     ai.Config
	DisableAI      bool
	Workers        int
}

// Server wires HTTP handlers with the session store and the analysis pipeline.
type Server struct {
	db             *store.Database
	matcher        *risk.Matcher
	analyzer       *analyzer.Analyzer
	generator      ai.Generator
	allowedOrigins []string
	notifier       *AnalysisNotifier
	jobMu          sync.Mutex
	activeJob      *analysisJob
	catalogPath    string
}

// NewServer constructs the API server. The generation client is built here
// once and injected into the analyzer; nothing lazily initializes it later.
func NewServer(cfg Config) (*Server, error) {
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	matcher, err := risk.NewMatcher(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("risk matcher: %w", err)
	}

	var generator ai.Generator
	if cfg.DisableAI {
		logrus.Info("AI analysis disabled via configuration; clauses will be flagged for manual review")
	} else if primary, err := ai.NewClient(cfg.AIConfig); err != nil {
		if !errors.Is(err, ai.ErrDisabled) {
			return nil, fmt.Errorf("ai client: %w", err)
		}
		logrus.Warn("no generation credentials configured; clauses will be flagged for manual review")
	} else {
		generator = primary
		if strings.TrimSpace(cfg.FallbackAI.APIKey) != "" {
			if secondary, err := ai.NewClient(cfg.FallbackAI); err == nil {
				generator = ai.WithFallback(primary, secondary)
				logrus.WithField("model", cfg.FallbackAI.Model).Info("fallback generation model configured")
			} else {
				logrus.WithError(err).Warn("fallback ai client")
			}
		}
	}

	clauseAnalyzer, err := analyzer.New(analyzer.Config{
		Generator:  generator,
		Matcher:    matcher,
		PromptPath: cfg.PromptPath,
		Workers:    cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	return &Server{
		db:             db,
		matcher:        matcher,
		analyzer:       clauseAnalyzer,
		generator:      generator,
		allowedOrigins: cfg.AllowedOrigins,
		notifier:       NewAnalysisNotifier(),
		catalogPath:    cfg.CatalogPath,
	}, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/documents", s.handleUploadDocument)
		api.GET("/documents", s.handleListDocuments)
		api.GET("/documents/:id", s.handleGetDocument)
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/analyze/status", s.handleAnalyzeStatus)
		api.DELETE("/analyze/:jobID", s.handleCancelAnalyze)
		api.GET("/analyze/stream", s.handleAnalyzeStream)
		api.GET("/results", s.handleResults)
		api.GET("/summary", s.handleSummary)
		api.GET("/export.csv", s.handleExportCSV)
		api.GET("/export.json", s.handleExportJSON)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	aiEnabled := s.generator != nil && s.generator.Enabled()
	c.JSON(http.StatusOK, gin.H{
		"risk_catalog_path": s.catalogPath,
		"risk_categories":   len(s.matcher.Catalog()),
		"ai_enabled":        aiEnabled,
	})
}

// handleUploadDocument accepts either a contract file (pdf, docx, txt) or a
// raw "text" form field, extracts and normalizes the text, and stores it as a
// session document. Extraction and empty-input failures abort the request.
func (s *Server) handleUploadDocument(c *gin.Context) {
	var (
		rawText  string
		filename string
		source   string
	)

	fileHeader, err := c.FormFile("contract")
	switch {
	case err == nil:
		path, cleanup, saveErr := saveFormFile(fileHeader)
		if saveErr != nil {
			s.renderError(c, http.StatusInternalServerError, saveErr)
			return
		}
		if cleanup != nil {
			defer cleanup()
		}
		ext := filepath.Ext(fileHeader.Filename)
		text, extractErr := extract.ExtractText(path, ext)
		if extractErr != nil {
			if errors.Is(extractErr, extract.ErrUnsupportedFormat) {
				s.renderError(c, http.StatusBadRequest, extractErr)
			} else {
				s.renderError(c, http.StatusBadRequest, fmt.Errorf("document extraction failed: %w", extractErr))
			}
			return
		}
		rawText = text
		filename = fileHeader.Filename
		source = "upload"
	case errors.Is(err, http.ErrMissingFile):
		rawText = c.PostForm("text")
		filename = "pasted-text"
		source = "text"
	default:
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	normalized := clause.Normalize(rawText)
	if normalized == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("no contract text found in the submitted document"))
		return
	}

	segments := clause.Segment(normalized)

	doc := &store.Document{
		Filename:    filename,
		Source:      source,
		Text:        normalized,
		CharCount:   len(normalized),
		ClauseCount: len(segments),
	}
	if err := s.db.CreateDocument(doc); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"chars":       doc.CharCount,
		"clauses":     doc.ClauseCount,
	}).Info("contract document stored")

	c.JSON(http.StatusOK, UploadResponse{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		Source:      doc.Source,
		CharCount:   doc.CharCount,
		ClauseCount: doc.ClauseCount,
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]DocumentDTO, 0, len(docs))
	for _, doc := range docs {
		dtos = append(dtos, DocumentFromModel(doc))
	}
	c.JSON(http.StatusOK, gin.H{"items": dtos})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	docID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	doc, err := s.db.GetDocument(docID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("document %d not found", docID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, DocumentFromModel(*doc))
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
	}
	if req.DocumentID == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("document_id is required"))
		return
	}

	doc, err := s.db.GetDocument(req.DocumentID)
	if err != nil {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("document %d not found", req.DocumentID))
		return
	}

	clauses := clause.Segment(doc.Text)
	if len(clauses) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("document has no analyzable text"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob != nil {
		s.renderError(c, http.StatusConflict, errors.New("analysis already running"))
		return
	}

	job := s.startAnalysis(doc, clauses)
	c.JSON(http.StatusAccepted, StartAnalysisResponse{
		JobID:      job.id,
		DocumentID: doc.ID,
		Total:      job.total,
		StartedAt:  job.startedAt,
	})
}

func (s *Server) handleCancelAnalyze(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobID"))
	if jobID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no analysis running"))
		return
	}
	if s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}

	s.activeJob.cancel()
	logrus.WithField("job", jobID).Info("analysis cancellation requested")
	s.notifier.Broadcast(AnalysisEvent{
		Type:       "progress",
		JobID:      s.activeJob.id,
		DocumentID: s.activeJob.documentID,
		Total:      s.activeJob.total,
		Message:    "cancellation requested",
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleAnalyzeStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	status := s.notifier.LastStatus()

	resp := AnalyzeStatusResponse{Running: job != nil}
	if job != nil {
		resp.JobID = job.id
		resp.DocumentID = job.documentID
		resp.Total = job.total
	}
	if status != nil {
		resp.State = status.Type
		resp.Message = status.Message
		if status.Processed != 0 {
			resp.Processed = status.Processed
		}
		if status.Total != 0 {
			resp.Total = status.Total
		}
		if status.DocumentID != 0 {
			resp.DocumentID = status.DocumentID
		}
		if status.Analysis != nil {
			snapshot := *status.Analysis
			resp.LastAnalysis = &snapshot
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAnalyzeStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket closed")
			} else {
				logrus.WithError(err).Warn("analysis websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) handleResults(c *gin.Context) {
	docID, err := queryDocumentID(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 100
	}

	riskOnly := strings.EqualFold(strings.TrimSpace(c.Query("riskOnly")), "true")

	rows, total, err := s.db.ListAnalyses(store.AnalysisQuery{
		DocumentID: docID,
		Query:      strings.TrimSpace(c.Query("q")),
		RiskOnly:   riskOnly,
		Offset:     page * pageSize,
		Limit:      pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]AnalysisDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	c.JSON(http.StatusOK, AnalysesResponse{Items: dtos, Total: total})
}

func (s *Server) handleSummary(c *gin.Context) {
	docID, err := queryDocumentID(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	total, err := s.db.CountAnalyses(docID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	risky, err := s.db.CountRisky(docID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	types, err := s.db.DistinctClauseTypes(docID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	score := analyzer.ScoreCounts(int(risky), int(total))
	c.JSON(http.StatusOK, SummaryResponse{
		DocumentID:   docID,
		TotalClauses: int(total),
		RiskyClauses: int(risky),
		SafeClauses:  int(total - risky),
		ClauseTypes:  len(types),
		RiskScore:    score.Score,
		RiskLevel:    score.Level,
		RiskSummary:  score.Summary,
	})
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryDocumentID(c *gin.Context) (uint, error) {
	value := strings.TrimSpace(firstNonEmpty(c.Query("document_id"), c.Query("documentId")))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid document_id: %s", value)
	}
	return uint(parsed), nil
}

func parseUintParam(value string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid id: %s", value)
	}
	return uint(parsed), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func saveFormFile(header *multipart.FileHeader) (string, func(), error) {
	if header == nil {
		return "", nil, errors.New("file header is nil")
	}
	src, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}

	path := tmp.Name()
	cleanup := func() { _ = os.Remove(path) }
	return path, cleanup, nil
}
