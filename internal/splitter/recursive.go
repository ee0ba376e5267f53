// Package splitter cuts page text into overlapping chunks sized for embedding.
package splitter

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the target chunk length in characters.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the number of characters shared by consecutive chunks.
const DefaultChunkOverlap = 100

// DefaultSeparators lists separators from coarsest to finest.
// The empty separator splits into single characters and must come last.
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// Recursive splits text on the coarsest separator that occurs in it, and only
// descends to finer separators for pieces still longer than the chunk size.
// Separators are kept at the start of the piece that follows them.
type Recursive struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter.
type Option func(*Recursive)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(r *Recursive) {
		if size > 0 {
			r.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(r *Recursive) {
		if overlap >= 0 {
			r.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator hierarchy.
func WithSeparators(separators ...string) Option {
	return func(r *Recursive) {
		if len(separators) > 0 {
			r.separators = separators
		}
	}
}

// New creates a recursive splitter with the given options.
func New(opts ...Option) *Recursive {
	r := &Recursive{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(r)
	}

	// Overlap must leave room for new content in every chunk
	if r.overlap >= r.chunkSize {
		r.overlap = r.chunkSize / 4
	}

	return r
}

// ChunkSize returns the configured chunk size.
func (r *Recursive) ChunkSize() int { return r.chunkSize }

// Overlap returns the configured overlap.
func (r *Recursive) Overlap() int { return r.overlap }

// Split returns the chunks of text. Whitespace-only input yields no chunks.
// Text shorter than the chunk size comes back as a single trimmed chunk.
func (r *Recursive) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return r.split(text, r.separators)
}

func (r *Recursive) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			finer = separators[i+1:]
			break
		}
	}

	var chunks, pending []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < r.chunkSize {
			pending = append(pending, piece)
			continue
		}

		if len(pending) > 0 {
			chunks = append(chunks, r.merge(pending)...)
			pending = nil
		}

		if len(finer) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				chunks = append(chunks, trimmed)
			}
			continue
		}
		chunks = append(chunks, r.split(piece, finer)...)
	}

	if len(pending) > 0 {
		chunks = append(chunks, r.merge(pending)...)
	}

	return chunks
}

// merge packs small pieces into chunks of at most chunkSize characters,
// carrying up to overlap characters of trailing pieces into the next chunk.
func (r *Recursive) merge(pieces []string) []string {
	var chunks, current []string
	total := 0

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)

		if total+n > r.chunkSize && len(current) > 0 {
			if chunk := join(current); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > r.overlap || (total+n > r.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += n
	}

	if chunk := join(current); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func join(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

// splitKeepingSeparator splits text on sep and prefixes every piece after the
// first with the separator. An empty separator splits into characters.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}
