// Package extract turns uploaded contract documents into plain text. The
// analysis core only ever consumes the returned text; everything about the
// underlying formats stays behind ExtractText.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat reports a document extension the service cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var spaceRuns = regexp.MustCompile(` +`)

// ExtractText pulls plain text out of the document at path. The declared
// extension decides the extraction strategy; underlying failures are wrapped,
// unknown extensions yield ErrUnsupportedFormat.
func ExtractText(path, declaredExt string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(declaredExt), "."))

	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, err = pdfText(path)
	case "docx":
		text, err = docxText(path)
	case "txt", "text", "md":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	default:
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s text: %w", ext, err)
	}
	return Clean(text), nil
}

// pdfText extracts the text layer of every page in order.
func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// Clean normalizes extracted text: strips every line, drops empty ones, and
// collapses repeated spaces.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	cleaned := strings.Join(lines, "\n")
	cleaned = spaceRuns.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
