package document

import (
	"errors"
	"testing"
)

func TestParseProcessedFile(t *testing.T) {
	data := []byte(`{
		"metadata": {"source": "raw/science_10/ch1.pdf", "filename": "ch1.pdf", "grade": "10", "subject": "Science"},
		"pages": [
			{"page_number": 1, "content": "Light is reflected.", "type": "text"},
			{"page_number": 2, "content": "Scanned diagram", "type": "ocr"},
			{"page_number": 3, "content": "No kind recorded"}
		]
	}`)

	pf, err := ParseProcessedFile(data)
	if err != nil {
		t.Fatalf("ParseProcessedFile() error = %v", err)
	}

	want := Metadata{SourcePath: "raw/science_10/ch1.pdf", Filename: "ch1.pdf", Grade: "10", Subject: "Science"}
	if pf.Metadata != want {
		t.Errorf("Metadata = %+v, want %+v", pf.Metadata, want)
	}
	if len(pf.Pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pf.Pages))
	}

	kinds := []ExtractionKind{KindText, KindOCR, KindText}
	for i, k := range kinds {
		if pf.Pages[i].Kind != k {
			t.Errorf("page %d kind = %q, want %q", i+1, pf.Pages[i].Kind, k)
		}
	}
}

func TestParseProcessedFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"no pages", `{"metadata": {}, "pages": []}`, ErrNoPages},
		{"zero page number", `{"pages": [{"page_number": 0, "content": "x"}]}`, ErrInvalidPage},
		{"unknown kind", `{"pages": [{"page_number": 1, "content": "x", "type": "vision"}]}`, ErrInvalidPage},
		{"malformed json", `{"pages": [`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProcessedFile([]byte(tt.data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractionKindValid(t *testing.T) {
	for _, k := range []ExtractionKind{KindText, KindOCR, KindHybrid} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if ExtractionKind("").Valid() {
		t.Error("empty kind should not be valid")
	}
}
