package clause

import (
	"regexp"
	"strings"
)

const (
	// Candidates at or below this stripped length are discarded as noise.
	minClauseLength = 50
	// Paragraph fallback keeps only paragraphs longer than this.
	minParagraphLength = 100
	// A boundary pattern qualifies once it produces this many matches.
	minBoundaryMatches = 2
)

// Clause is one candidate contract provision produced by segmentation.
type Clause struct {
	Text          string `json:"text"`
	SectionNumber string `json:"section_number"`
	Title         string `json:"title"`
}

// numberedPatterns are tried in order; the first one yielding enough matches
// wins and later patterns are never combined with it.
var numberedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*\d+\.\s`),      // 1. 2. 3.
	regexp.MustCompile(`(?m)^\s*\d+\.\d+\s`),   // 1.1 1.2 2.1
	regexp.MustCompile(`(?m)^\s*\(\d+\)\s`),    // (1) (2) (3)
	regexp.MustCompile(`(?m)^\s*[A-Z]\.\s`),    // A. B. C.
	regexp.MustCompile(`(?m)^\s*Article\s+\d+`),
	regexp.MustCompile(`(?m)^\s*Section\s+\d+`),
}

// legalHeaders are the canonical section names recognized by the
// header-keyword strategy.
var legalHeaders = []string{
	"Termination",
	"Liability",
	"Confidentiality",
	"Non-Disclosure",
	"Payment",
	"Intellectual Property",
	"Governing Law",
	"Dispute Resolution",
	"Force Majeure",
	"Indemnification",
	"Warranties",
	"Limitation of Liability",
	"Entire Agreement",
	"Amendment",
	"Assignment",
	"Severability",
	"Notices",
	"Definitions",
	"Scope of Work",
	"Deliverables",
	"Term",
	"Renewal",
	"Cancellation",
	"Jurisdiction",
	"Compliance",
	"Data Protection",
	"Privacy",
}

var headerPattern = buildHeaderPattern(legalHeaders)

func buildHeaderPattern(headers []string) *regexp.Regexp {
	escaped := make([]string, 0, len(headers))
	for _, h := range headers {
		escaped = append(escaped, regexp.QuoteMeta(h))
	}
	return regexp.MustCompile(`(?mi)^\s*(?:` + strings.Join(escaped, "|") + `)`)
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Segment splits normalized contract text into candidate clauses. Strategies
// are cascaded from the most structurally reliable signal to the weakest:
// numbered sections, then legal header keywords, then paragraph breaks. The
// result is never empty for non-empty input; when every candidate is filtered
// out the whole text is returned as a single clause.
func Segment(text string) []Clause {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	candidates := numberedSections(trimmed)
	if len(candidates) < minBoundaryMatches {
		candidates = headerSections(trimmed)
	}
	if len(candidates) == 0 {
		candidates = paragraphSections(trimmed)
	}

	clauses := make([]Clause, 0, len(candidates))
	for _, candidate := range candidates {
		stripped := strings.TrimSpace(candidate)
		if len(stripped) > minClauseLength {
			clauses = append(clauses, newClause(stripped))
		}
	}
	if len(clauses) == 0 {
		return []Clause{newClause(trimmed)}
	}
	return clauses
}

// numberedSections splits at explicit numbering markers. Only the first
// pattern producing at least two matches is used.
func numberedSections(text string) []string {
	for _, pattern := range numberedPatterns {
		matches := pattern.FindAllStringIndex(text, -1)
		if len(matches) >= minBoundaryMatches {
			return splitAt(text, matches)
		}
	}
	return nil
}

// headerSections splits at canonical legal section headers.
func headerSections(text string) []string {
	matches := headerPattern.FindAllStringIndex(text, -1)
	if len(matches) < minBoundaryMatches {
		return nil
	}
	return splitAt(text, matches)
}

// paragraphSections is the weakest fallback: blank-line delimited paragraphs
// long enough to plausibly be a clause.
func paragraphSections(text string) []string {
	var sections []string
	for _, paragraph := range paragraphBreak.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if len(paragraph) > minParagraphLength {
			sections = append(sections, paragraph)
		}
	}
	return sections
}

// splitAt slices text at each match start; a clause runs from one boundary to
// the next, the last one to end of text.
func splitAt(text string, matches [][]int) []string {
	sections := make([]string, 0, len(matches))
	for i, match := range matches {
		start := match[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		section := strings.TrimSpace(text[start:end])
		if section != "" {
			sections = append(sections, section)
		}
	}
	return sections
}

var sectionNumberPattern = regexp.MustCompile(`^\s*(\d+\.\d*|\(\d+\)|[A-Z]\.)\s*`)

var sentenceBreak = regexp.MustCompile(`[.!?]`)

func newClause(stripped string) Clause {
	c := Clause{Text: stripped}
	if m := sectionNumberPattern.FindStringSubmatch(stripped); m != nil {
		c.SectionNumber = strings.TrimSpace(m[1])
	}
	c.Title = clauseTitle(stripped, c.SectionNumber)
	return c
}

// clauseTitle derives a short title from the first line, preferring its first
// sentence when that is reasonably short.
func clauseTitle(text, sectionNumber string) string {
	firstLine := text
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	if sectionNumber != "" {
		firstLine = strings.TrimSpace(strings.Replace(firstLine, sectionNumber, "", 1))
	}
	if firstLine == "" {
		return ""
	}
	sentences := sentenceBreak.Split(firstLine, -1)
	if len(sentences) > 0 && len(sentences[0]) < 100 {
		return strings.TrimSpace(sentences[0])
	}
	if len(firstLine) > 50 {
		return firstLine[:50] + "..."
	}
	return firstLine
}
