package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestSplit_ShortPage verifies a page under the chunk size comes back verbatim.
func TestSplit_ShortPage(t *testing.T) {
	page := strings.Repeat("Acids turn blue litmus red. ", 14) + "Bases turn red litmus blue."
	page = strings.TrimSpace(page)
	if n := utf8.RuneCountInString(page); n >= DefaultChunkSize {
		t.Fatalf("test page too long: %d", n)
	}

	chunks := New().Split(page)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != page {
		t.Errorf("Chunk content differs from page content")
	}
}

// TestSplit_Empty verifies blank input produces no chunks.
func TestSplit_Empty(t *testing.T) {
	if chunks := New().Split("  \n\n  "); chunks != nil {
		t.Errorf("Expected nil, got %v", chunks)
	}
}

// TestSplit_PrefersParagraphs verifies paragraph breaks win over finer separators.
func TestSplit_PrefersParagraphs(t *testing.T) {
	p1 := strings.Repeat("a", 600)
	p2 := strings.Repeat("b", 600)

	chunks := New().Split(p1 + "\n\n" + p2)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != p1 || chunks[1] != p2 {
		t.Errorf("Chunks did not split on the paragraph boundary")
	}
}

// TestSplit_SentenceOverlap verifies bounded chunks that share text across the boundary.
func TestSplit_SentenceOverlap(t *testing.T) {
	text := strings.Repeat("Plants make food by photosynthesis. ", 100)

	chunks := New().Split(text)
	if len(chunks) < 3 {
		t.Fatalf("Expected at least 3 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > DefaultChunkSize {
			t.Errorf("Chunk %d has %d characters, max %d", i, n, DefaultChunkSize)
		}
	}

	for i := 0; i+1 < len(chunks); i++ {
		head := chunks[i+1][:20]
		if !strings.Contains(chunks[i], head) {
			t.Errorf("Chunk %d does not overlap with chunk %d", i+1, i)
		}
	}
}

// TestSplit_CharacterFallback verifies text with no separators is cut by characters.
func TestSplit_CharacterFallback(t *testing.T) {
	text := strings.Repeat("x", 2500)

	chunks := New().Split(text)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	wantLens := []int{1000, 1000, 700}
	for i, want := range wantLens {
		if got := len(chunks[i]); got != want {
			t.Errorf("Chunk %d length: expected %d, got %d", i, want, got)
		}
	}
}

// TestSplit_CountsRunes verifies sizes are measured in characters, not bytes.
func TestSplit_CountsRunes(t *testing.T) {
	// Devanagari runes are three bytes each
	page := strings.Repeat("क", 900)

	chunks := New().Split(page)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
}

// TestNew_ClampsOverlap verifies an overlap that would stall splitting is reduced.
func TestNew_ClampsOverlap(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(100))
	if s.Overlap() != 25 {
		t.Errorf("Expected overlap 25, got %d", s.Overlap())
	}
	if s.ChunkSize() != 100 {
		t.Errorf("Expected chunk size 100, got %d", s.ChunkSize())
	}
}
