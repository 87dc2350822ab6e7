package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Analysis holds the structured fields recovered from a model reply. Every
// field carries a deterministic default, so a parsed record is always fully
// populated and displayable.
type Analysis struct {
	ClauseType string  `json:"clause_type"`
	Summary    string  `json:"summary"`
	RiskFlag   bool    `json:"risk_flag"`
	RiskReason string  `json:"risk_reason"`
	Confidence float64 `json:"confidence"`
}

const (
	defaultClauseType   = "Unknown"
	defaultSummary      = "No summary available"
	fallbackSummary     = "Could not parse AI response properly"
	genericRiskReason   = "Potential risk detected but no specific reason provided"
	riskIndicatorReason = "Potential risks mentioned in analysis"
	parsedConfidence    = 0.7
	fallbackConfidence  = 0.5
)

var (
	clauseTypeLine = regexp.MustCompile(`(?i)(?:clause type|type):\s*([^\n]+)`)
	summaryLine    = regexp.MustCompile(`(?i)(?:summary|explanation):\s*([^\n]+(?:\n[^\n:]+)*)`)
)

var riskIndicators = []string{"risk", "danger", "concern", "warning", "caution", "problematic"}

// ParseAnalysis decodes a model reply into a fully defaulted Analysis. It
// never fails: well-formed JSON (optionally wrapped in a code fence) takes the
// strict path, anything else goes through the prose fallback.
func ParseAnalysis(raw string) Analysis {
	cleaned := stripCodeFence(strings.TrimSpace(raw))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return parseProse(raw)
	}

	analysis := Analysis{
		ClauseType: defaultClauseType,
		Summary:    defaultSummary,
	}
	if v, ok := stringField(fields, "clause_type"); ok {
		analysis.ClauseType = v
	}
	if v, ok := stringField(fields, "summary"); ok {
		analysis.Summary = v
	}
	if raw, ok := fields["risk_flag"]; ok {
		var flag bool
		if err := json.Unmarshal(raw, &flag); err == nil {
			analysis.RiskFlag = flag
		}
	}
	if v, ok := stringField(fields, "risk_reason"); ok {
		analysis.RiskReason = v
	}
	if analysis.RiskFlag && strings.TrimSpace(analysis.RiskReason) == "" {
		analysis.RiskReason = genericRiskReason
	}

	analysis.Confidence = parsedConfidence
	if raw, ok := fields["confidence"]; ok {
		var conf float64
		if err := json.Unmarshal(raw, &conf); err == nil {
			analysis.Confidence = clampConfidence(conf)
		}
	}
	return analysis
}

// parseProse recovers what it can from an unstructured reply via line-anchored
// regex extraction and a risk-indicator scan.
func parseProse(raw string) Analysis {
	analysis := Analysis{
		ClauseType: defaultClauseType,
		Summary:    fallbackSummary,
		Confidence: fallbackConfidence,
	}

	if m := clauseTypeLine.FindStringSubmatch(raw); m != nil {
		analysis.ClauseType = strings.TrimSpace(m[1])
	}
	if m := summaryLine.FindStringSubmatch(raw); m != nil {
		analysis.Summary = strings.TrimSpace(m[1])
	}

	lower := strings.ToLower(raw)
	for _, indicator := range riskIndicators {
		if strings.Contains(lower, indicator) {
			analysis.RiskFlag = true
			analysis.RiskReason = riskIndicatorReason
			break
		}
	}
	return analysis
}

// stripCodeFence removes a surrounding markdown code fence when present.
func stripCodeFence(input string) string {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "json")
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
