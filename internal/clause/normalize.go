package clause

import (
	"regexp"
	"strings"
)

var (
	blankLineRuns = regexp.MustCompile(`\n\s*\n`)
	spaceRuns     = regexp.MustCompile(` +`)
)

// Normalize unifies line endings and collapses whitespace ahead of
// segmentation. The result carries no carriage returns, no runs of repeated
// spaces, and at most a single blank line between paragraphs.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
