package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contract-risk-review/backend/internal/analyzer"
	"contract-risk-review/backend/internal/clause"
	"contract-risk-review/backend/internal/store"
)

// progressThrottle limits broadcast frequency; the final record always flushes.
const progressThrottle = 500 * time.Millisecond

type analysisJob struct {
	id         string
	documentID uint
	total      int
	startedAt  time.Time
	cancel     context.CancelFunc
}

// startAnalysis registers and launches the background run. The caller must
// hold jobMu and have verified no job is active.
func (s *Server) startAnalysis(doc *store.Document, clauses []clause.Clause) *analysisJob {
	ctx, cancel := context.WithCancel(context.Background())
	job := &analysisJob{
		id:         uuid.NewString(),
		documentID: doc.ID,
		total:      len(clauses),
		startedAt:  time.Now().UTC(),
		cancel:     cancel,
	}
	s.activeJob = job

	go s.runAnalysis(ctx, job, doc, clauses)
	return job
}

func (s *Server) runAnalysis(ctx context.Context, job *analysisJob, doc *store.Document, clauses []clause.Clause) {
	defer func() {
		s.jobMu.Lock()
		if s.activeJob == job {
			s.activeJob = nil
		}
		s.jobMu.Unlock()
		job.cancel()
	}()

	log := logrus.WithFields(logrus.Fields{
		"job":         job.id,
		"document_id": doc.ID,
		"clauses":     job.total,
	})
	log.Info("analysis run started")

	// Re-running a document replaces its previous results.
	if err := s.db.ClearAnalyses(doc.ID); err != nil {
		log.WithError(err).Error("clear previous analyses")
		s.notifier.Broadcast(AnalysisEvent{
			Type:       "error",
			JobID:      job.id,
			DocumentID: doc.ID,
			Message:    "could not reset previous results",
		})
		return
	}

	s.notifier.Broadcast(AnalysisEvent{
		Type:       "started",
		JobID:      job.id,
		DocumentID: doc.ID,
		Total:      job.total,
	})

	var (
		processed    int
		lastProgress time.Time
	)

	// onResult calls are serialized by the analyzer, so counters need no lock.
	onResult := func(index int, record analyzer.ClauseAnalysis) {
		row := &store.Analysis{
			DocumentID:       doc.ID,
			Position:         index,
			SectionNumber:    record.SectionNumber,
			Title:            record.Title,
			OriginalText:     record.OriginalText,
			ClauseType:       record.ClauseType,
			Summary:          record.Summary,
			RiskFlag:         record.RiskFlag,
			RiskReason:       record.RiskReason,
			Confidence:       record.Confidence,
			ProcessingTimeMs: record.ProcessingMs,
		}
		if err := s.db.SaveAnalysis(row); err != nil {
			log.WithError(err).WithField("position", index).Warn("save clause analysis")
		}

		processed++
		if processed < job.total && time.Since(lastProgress) < progressThrottle {
			return
		}
		lastProgress = time.Now()

		dto := FromModel(*row)
		s.notifier.Broadcast(AnalysisEvent{
			Type:       "analysis",
			JobID:      job.id,
			DocumentID: doc.ID,
			Total:      job.total,
			Processed:  processed,
			Analysis:   &dto,
		})
	}

	results := s.analyzer.AnalyzeWithProgress(ctx, clauses, onResult)

	if ctx.Err() != nil {
		log.Info("analysis run cancelled")
		s.notifier.Broadcast(AnalysisEvent{
			Type:       "cancelled",
			JobID:      job.id,
			DocumentID: doc.ID,
			Total:      job.total,
			Processed:  processed,
			Message:    "analysis cancelled; remaining clauses flagged for manual review",
		})
		return
	}

	if err := s.db.MarkDocumentAnalyzed(doc.ID, len(results)); err != nil {
		log.WithError(err).Warn("mark document analyzed")
	}

	risky := 0
	for _, record := range results {
		if record.RiskFlag {
			risky++
		}
	}
	score := analyzer.ScoreCounts(risky, len(results))

	log.WithFields(logrus.Fields{
		"risky":      risky,
		"risk_score": score.Score,
	}).Info("analysis run complete")

	s.notifier.Broadcast(AnalysisEvent{
		Type:       "complete",
		JobID:      job.id,
		DocumentID: doc.ID,
		Total:      job.total,
		Processed:  processed,
		Message:    fmt.Sprintf("%s risk: %s", score.Level, score.Summary),
	})
}
