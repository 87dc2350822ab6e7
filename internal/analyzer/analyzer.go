package analyzer

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"contract-risk-review/backend/internal/ai"
	"contract-risk-review/backend/internal/clause"
	"contract-risk-review/backend/internal/risk"
	"contract-risk-review/backend/internal/util"
)

const (
	fallbackClauseType = "Unknown"
	fallbackSummary    = "Analysis failed - manual review required"
	fallbackRiskReason = "Could not analyze with AI - requires manual review"
)

// ClauseAnalysis is the per-clause output record. Every field is populated
// even when the generation call fails.
type ClauseAnalysis struct {
	OriginalText  string  `json:"original_text"`
	SectionNumber string  `json:"section_number"`
	Title         string  `json:"title"`
	ClauseType    string  `json:"clause_type"`
	Summary       string  `json:"summary"`
	RiskFlag      bool    `json:"risk_flag"`
	RiskReason    string  `json:"risk_reason"`
	Confidence    float64 `json:"confidence"`
	ProcessingMs  int64   `json:"processing_ms"`
}

// Config wires the analyzer's collaborators. The generator may be nil; every
// clause then degrades to the manual-review fallback record.
type Config struct {
	Generator  ai.Generator
	Matcher    *risk.Matcher
	PromptPath string
	Workers    int
}

// Analyzer classifies clauses through the generation service and augments the
// result with keyword-based risk findings.
type Analyzer struct {
	generator ai.Generator
	matcher   *risk.Matcher
	prompt    string
	workers   int
}

// New constructs an Analyzer from the supplied configuration.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Matcher == nil {
		return nil, errors.New("risk matcher is required")
	}
	if err := cfg.Matcher.Validate(); err != nil {
		return nil, err
	}
	prompt, err := loadPromptTemplate(cfg.PromptPath)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkerCount()
	}
	return &Analyzer{
		generator: cfg.Generator,
		matcher:   cfg.Matcher,
		prompt:    prompt,
		workers:   workers,
	}, nil
}

func defaultWorkerCount() int {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	if workers > 12 {
		workers = 12
	}
	return workers
}

// Analyze produces one record per clause, in input order. Per-clause failures
// degrade to the fallback record and never abort the batch.
func (a *Analyzer) Analyze(ctx context.Context, clauses []clause.Clause) []ClauseAnalysis {
	return a.AnalyzeWithProgress(ctx, clauses, nil)
}

// AnalyzeWithProgress behaves like Analyze but invokes onResult as each
// clause's record becomes available. Records may complete out of order; the
// returned slice still matches input order. onResult calls are serialized.
func (a *Analyzer) AnalyzeWithProgress(ctx context.Context, clauses []clause.Clause, onResult func(index int, analysis ClauseAnalysis)) []ClauseAnalysis {
	results := make([]ClauseAnalysis, len(clauses))
	if len(clauses) == 0 {
		return results
	}

	workers := a.workers
	if workers > len(clauses) {
		workers = len(clauses)
	}

	type task struct {
		index  int
		clause clause.Clause
	}

	taskCh := make(chan task)
	done := make([]bool, len(clauses))

	var (
		resultMu sync.Mutex
		workerWG sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for t := range taskCh {
				record := a.analyzeClause(ctx, t.clause)
				resultMu.Lock()
				results[t.index] = record
				done[t.index] = true
				if onResult != nil {
					onResult(t.index, record)
				}
				resultMu.Unlock()
			}
		}()
	}

dispatch:
	for i := range clauses {
		select {
		case taskCh <- task{index: i, clause: clauses[i]}:
		case <-ctx.Done():
			// Stop dispatching; in-flight calls finish on their own.
			break dispatch
		}
	}
	close(taskCh)
	workerWG.Wait()

	// Clauses never dispatched still get a fully populated record.
	for i := range results {
		if !done[i] {
			results[i] = a.fallbackRecord(clauses[i])
			if onResult != nil {
				onResult(i, results[i])
			}
		}
	}
	return results
}

// analyzeClause runs the full per-clause pipeline: prompt, generate, parse,
// keyword risk merge. Any failure yields the fallback record.
func (a *Analyzer) analyzeClause(ctx context.Context, cl clause.Clause) ClauseAnalysis {
	timer := util.StartTimer()

	if a.generator == nil || !a.generator.Enabled() {
		record := a.fallbackRecord(cl)
		record.ProcessingMs = timer.ElapsedMs()
		return record
	}

	reply, err := a.generator.Generate(ctx, a.buildPrompt(cl.Text))
	if err != nil || strings.TrimSpace(reply) == "" {
		logrus.WithError(err).WithField("clause_chars", len(cl.Text)).Warn("clause analysis failed")
		record := a.fallbackRecord(cl)
		record.ProcessingMs = timer.ElapsedMs()
		return record
	}

	parsed := ai.ParseAnalysis(reply)
	record := ClauseAnalysis{
		OriginalText:  cl.Text,
		SectionNumber: cl.SectionNumber,
		Title:         cl.Title,
		ClauseType:    parsed.ClauseType,
		Summary:       parsed.Summary,
		RiskFlag:      parsed.RiskFlag,
		RiskReason:    parsed.RiskReason,
		Confidence:    parsed.Confidence,
	}

	// Keyword findings only force the flag when the model stayed silent;
	// model-authored risk reasons are never overwritten.
	if !record.RiskFlag {
		if findings := a.matcher.Describe(cl.Text); findings != "" {
			record.RiskFlag = true
			record.RiskReason = findings
		}
	}

	record.ProcessingMs = timer.ElapsedMs()
	return record
}

func (a *Analyzer) fallbackRecord(cl clause.Clause) ClauseAnalysis {
	return ClauseAnalysis{
		OriginalText:  cl.Text,
		SectionNumber: cl.SectionNumber,
		Title:         cl.Title,
		ClauseType:    fallbackClauseType,
		Summary:       fallbackSummary,
		RiskFlag:      true,
		RiskReason:    fallbackRiskReason,
		Confidence:    0,
	}
}
