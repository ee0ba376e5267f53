// Package document defines the page, metadata and chunk records that flow from
// ingestion into the vector index.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ExtractionKind records how a page's text was obtained.
type ExtractionKind string

const (
	KindText   ExtractionKind = "text"
	KindOCR    ExtractionKind = "ocr"
	KindHybrid ExtractionKind = "hybrid"
)

// Valid reports whether k is one of the known extraction kinds.
func (k ExtractionKind) Valid() bool {
	switch k {
	case KindText, KindOCR, KindHybrid:
		return true
	}
	return false
}

var (
	ErrInvalidPage = errors.New("invalid page record")
	ErrNoPages     = errors.New("processed file has no pages")
)

// PageRecord is one page of extracted text produced by the ingestion stage.
type PageRecord struct {
	PageNumber int            `json:"page_number"`
	Content    string         `json:"content"`
	Kind       ExtractionKind `json:"type"`
}

// Metadata describes the source book or chapter. It is immutable once ingestion completes.
type Metadata struct {
	SourcePath string `json:"source"`
	Filename   string `json:"filename"`
	Grade      string `json:"grade"`
	Subject    string `json:"subject"`
}

// Chunk is the unit of indexing and retrieval. A chunk never spans two pages.
type Chunk struct {
	ID         string
	Content    string
	Metadata   Metadata
	PageNumber int
	Kind       ExtractionKind
}

// ProcessedFile is the on-disk JSON layout written by the ingestion stage.
type ProcessedFile struct {
	Metadata Metadata     `json:"metadata"`
	Pages    []PageRecord `json:"pages"`
}

// ParseProcessedFile decodes and validates a processed file.
// Pages with an empty extraction kind are treated as plain text.
func ParseProcessedFile(data []byte) (*ProcessedFile, error) {
	var pf ProcessedFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decode processed file: %w", err)
	}
	if len(pf.Pages) == 0 {
		return nil, ErrNoPages
	}

	for i := range pf.Pages {
		page := &pf.Pages[i]
		if page.PageNumber < 1 {
			return nil, fmt.Errorf("%w: page %d has number %d", ErrInvalidPage, i, page.PageNumber)
		}
		if page.Kind == "" {
			page.Kind = KindText
		}
		if !page.Kind.Valid() {
			return nil, fmt.Errorf("%w: page %d has kind %q", ErrInvalidPage, page.PageNumber, page.Kind)
		}
	}

	return &pf, nil
}
