// Package feedback records user ratings of generated answers as JSON lines.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPath is where entries are appended when no path is configured.
const DefaultPath = "data/feedback.jsonl"

// Ratings accepted by Submit.
const (
	RatingBad  = 0
	RatingGood = 1
)

var (
	ErrEmptyQuery    = errors.New("feedback query must not be empty")
	ErrInvalidRating = errors.New("feedback rating must be 0 or 1")
)

// Entry is one rating of an answer.
type Entry struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Rating    int       `json:"rating"`
	Comments  string    `json:"comments,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store appends entries to a JSONL file. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore creates a Store writing to path, or DefaultPath when empty.
// The file and its directory are created on the first Submit.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, now: time.Now}
}

// Path returns the file entries are appended to.
func (s *Store) Path() string {
	return s.path
}

// Submit validates e, stamps its ID and time, and appends it as one line.
func (s *Store) Submit(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if strings.TrimSpace(e.Query) == "" {
		return Entry{}, ErrEmptyQuery
	}
	if e.Rating != RatingBad && e.Rating != RatingGood {
		return Entry{}, fmt.Errorf("%w, got %d", ErrInvalidRating, e.Rating)
	}

	e.ID = uuid.NewString()
	e.Timestamp = s.now().UTC()

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode feedback: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Entry{}, fmt.Errorf("failed to create feedback directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to open feedback file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return Entry{}, fmt.Errorf("failed to write feedback: %w", err)
	}
	if err := f.Close(); err != nil {
		return Entry{}, fmt.Errorf("failed to close feedback file: %w", err)
	}
	return e, nil
}
