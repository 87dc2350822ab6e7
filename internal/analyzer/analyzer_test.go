package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"contract-risk-review/backend/internal/clause"
	"contract-risk-review/backend/internal/risk"
)

// generatorFunc adapts a function to the ai.Generator interface.
type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Enabled() bool { return true }

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func newTestAnalyzer(t *testing.T, gen generatorFunc, workers int) *Analyzer {
	t.Helper()
	matcher, err := risk.NewMatcher("")
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	a, err := New(Config{Generator: gen, Matcher: matcher, Workers: workers})
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}
	return a
}

func testClauses(n int) []clause.Clause {
	clauses := make([]clause.Clause, n)
	for i := range clauses {
		clauses[i] = clause.Clause{Text: fmt.Sprintf("clause-%d body text with enough words to be plausible", i)}
	}
	return clauses
}

func TestAnalyzePreservesInputOrder(t *testing.T) {
	// Replies embed the clause index; concurrent completion order must not
	// leak into the output order.
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		var index int
		if _, err := fmt.Sscanf(prompt[strings.Index(prompt, "clause-"):], "clause-%d", &index); err != nil {
			return "", err
		}
		return fmt.Sprintf(`{"clause_type":"Type-%d","summary":"Summary %d.","risk_flag":false}`, index, index), nil
	})

	a := newTestAnalyzer(t, gen, 4)
	clauses := testClauses(10)

	records := a.Analyze(context.Background(), clauses)
	if len(records) != len(clauses) {
		t.Fatalf("expected %d records got %d", len(clauses), len(records))
	}
	for i, record := range records {
		expected := fmt.Sprintf("Type-%d", i)
		if record.ClauseType != expected {
			t.Fatalf("record %d has clause type %q, order not preserved", i, record.ClauseType)
		}
	}
}

func TestAnalyzeIsolatesPerClauseFailures(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "clause-1") {
			return "", errors.New("service unavailable")
		}
		return `{"clause_type":"Payment","summary":"Fine.","risk_flag":false,"confidence":0.9}`, nil
	})

	a := newTestAnalyzer(t, gen, 2)
	records := a.Analyze(context.Background(), testClauses(3))

	failed := records[1]
	if failed.ClauseType != "Unknown" {
		t.Fatalf("expected Unknown got %q", failed.ClauseType)
	}
	if !failed.RiskFlag {
		t.Fatal("failed clause must be risk flagged")
	}
	if failed.Confidence != 0 {
		t.Fatalf("expected zero confidence got %v", failed.Confidence)
	}
	if !strings.Contains(failed.RiskReason, "Could not analyze with AI") {
		t.Fatalf("unexpected risk reason %q", failed.RiskReason)
	}

	for _, i := range []int{0, 2} {
		if records[i].ClauseType != "Payment" || records[i].RiskFlag {
			t.Fatalf("record %d affected by neighbour failure: %+v", i, records[i])
		}
	}
}

func TestAnalyzeKeywordRiskMerge(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"clause_type":"Termination","summary":"They can leave whenever.","risk_flag":false}`, nil
	})

	a := newTestAnalyzer(t, gen, 1)
	clauses := []clause.Clause{{Text: "Either party may terminate at will upon notice."}}

	records := a.Analyze(context.Background(), clauses)
	if !records[0].RiskFlag {
		t.Fatal("keyword findings should force the risk flag")
	}
	if !strings.Contains(records[0].RiskReason, "Broad termination rights") {
		t.Fatalf("expected keyword finding in reason, got %q", records[0].RiskReason)
	}
}

func TestAnalyzeModelRiskReasonWins(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"clause_type":"Termination","summary":"Risky.","risk_flag":true,"risk_reason":"Model reason."}`, nil
	})

	a := newTestAnalyzer(t, gen, 1)
	clauses := []clause.Clause{{Text: "Either party may terminate at will upon notice."}}

	records := a.Analyze(context.Background(), clauses)
	if records[0].RiskReason != "Model reason." {
		t.Fatalf("keyword matcher must not overwrite a model-asserted reason, got %q", records[0].RiskReason)
	}
}

func TestAnalyzeNilGenerator(t *testing.T) {
	matcher, err := risk.NewMatcher("")
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	a, err := New(Config{Matcher: matcher, Workers: 2})
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}

	records := a.Analyze(context.Background(), testClauses(2))
	for i, record := range records {
		if record.ClauseType != "Unknown" || !record.RiskFlag {
			t.Fatalf("record %d should be the fallback record: %+v", i, record)
		}
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", ctx.Err()
	})

	a := newTestAnalyzer(t, gen, 2)
	clauses := testClauses(5)

	records := a.Analyze(ctx, clauses)
	if len(records) != len(clauses) {
		t.Fatalf("expected %d records got %d", len(clauses), len(records))
	}
	for i, record := range records {
		if record.OriginalText == "" {
			t.Fatalf("record %d not populated after cancellation", i)
		}
		if !record.RiskFlag || record.ClauseType != "Unknown" {
			t.Fatalf("record %d should degrade to fallback: %+v", i, record)
		}
	}
}

func TestAnalyzeProgressCallback(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"clause_type":"Payment","summary":"Fine.","risk_flag":false}`, nil
	})

	a := newTestAnalyzer(t, gen, 3)
	seen := make(map[int]bool)

	a.AnalyzeWithProgress(context.Background(), testClauses(6), func(index int, analysis ClauseAnalysis) {
		if seen[index] {
			t.Errorf("index %d reported twice", index)
		}
		seen[index] = true
	})

	if len(seen) != 6 {
		t.Fatalf("expected 6 progress callbacks got %d", len(seen))
	}
}

func TestScoreCounts(t *testing.T) {
	tests := []struct {
		name  string
		risky int
		total int
		level string
	}{
		{"high", 3, 4, "High"},
		{"medium", 1, 4, "Medium"},
		{"low", 1, 10, "Low"},
		{"minimal", 0, 5, "Minimal"},
		{"empty", 0, 0, "Unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score := ScoreCounts(tc.risky, tc.total)
			if score.Level != tc.level {
				t.Fatalf("expected level %s got %s", tc.level, score.Level)
			}
		})
	}
}
