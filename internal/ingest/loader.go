package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/vokinneberg/telugu-qa/internal/rag"
)

// Supported reports whether a file name has an extension the loaders understand
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt":
		return true
	default:
		return false
	}
}

// Load reads a supported file into documents, one per PDF page or one for a text file
func Load(path string) ([]rag.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return LoadPDF(path)
	case ".txt":
		return LoadText(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// LoadPDF extracts the cleaned text of every non-empty page
func LoadPDF(path string) (docs []rag.Document, err error) {
	// The parser panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("failed to parse PDF %s: %v", filepath.Base(path), r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	source := filepath.Base(path)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}

		text = CleanText(text)
		if text == "" {
			continue
		}
		docs = append(docs, rag.Document{Source: source, Page: i, Text: text})
	}

	return docs, nil
}

// LoadText reads a plain text file as a single document
func LoadText(path string) ([]rag.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	text := CleanText(string(data))
	if text == "" {
		return nil, nil
	}
	return []rag.Document{{Source: filepath.Base(path), Text: text}}, nil
}

var noiseLines = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^page\s*\d+\s*(of\s*\d+)?$`),
	regexp.MustCompile(`(?i)^confidential$`),
	regexp.MustCompile(`(?i)government\s+of\s+telangana`),
}

// CleanText drops page headers and footers and joins the remaining lines with single spaces
func CleanText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isNoise(line) {
			continue
		}
		kept = append(kept, strings.Join(strings.Fields(line), " "))
	}
	return strings.Join(kept, " ")
}

func isNoise(line string) bool {
	for _, re := range noiseLines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
