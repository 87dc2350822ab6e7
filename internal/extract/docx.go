package extract

import (
	"archive/zip"
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxDocumentEntry = "word/document.xml"

// docxText streams the main document part of a DOCX archive and concatenates
// its text runs. Paragraph and table-cell boundaries become line breaks and
// spaces so downstream segmentation still sees the document structure.
func docxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	defer archive.Close()

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == docxDocumentEntry {
			document = file
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("%s missing from archive", docxDocumentEntry)
	}

	rc, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("open document part: %w", err)
	}
	defer rc.Close()

	return decodeDocumentXML(rc)
}

// decodeDocumentXML walks WordprocessingML token by token so arbitrarily
// large documents never need to be held in memory at once.
func decodeDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(bufio.NewReader(r))

	var (
		builder strings.Builder
		inRun   bool
	)
	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("decode token: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRun = true
			case "tab":
				builder.WriteByte(' ')
			case "br":
				builder.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				builder.WriteByte('\n')
			case "tc":
				builder.WriteByte(' ')
			}
		case xml.CharData:
			if inRun {
				builder.Write(t)
			}
		}
	}
	return builder.String(), nil
}
