package analyzer

import "fmt"

// RiskScore aggregates batch-level risk statistics over a result set.
type RiskScore struct {
	Score            float64 `json:"score"`
	Level            string  `json:"level"`
	Summary          string  `json:"summary"`
	RiskyClauseCount int     `json:"risky_clause_count"`
	TotalClauseCount int     `json:"total_clause_count"`
}

// ScoreBatch computes the overall contract risk score for a set of records.
func ScoreBatch(records []ClauseAnalysis) RiskScore {
	risky := 0
	for _, record := range records {
		if record.RiskFlag {
			risky++
		}
	}
	return ScoreCounts(risky, len(records))
}

// ScoreCounts computes the overall risk score from raw counts.
func ScoreCounts(risky, total int) RiskScore {
	if total == 0 {
		return RiskScore{Level: "Unknown", Summary: "No clauses to analyze"}
	}

	percentage := float64(risky) / float64(total) * 100

	level := "Minimal"
	switch {
	case percentage >= 50:
		level = "High"
	case percentage >= 25:
		level = "Medium"
	case percentage > 0:
		level = "Low"
	}

	return RiskScore{
		Score:            percentage,
		Level:            level,
		Summary:          fmt.Sprintf("%d out of %d clauses flagged as potentially risky (%.1f%%)", risky, total, percentage),
		RiskyClauseCount: risky,
		TotalClauseCount: total,
	}
}
