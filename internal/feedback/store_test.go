package feedback

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestStore_SubmitAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "feedback.jsonl")
	s := NewStore(path)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }

	first, err := s.Submit(context.Background(), Entry{Query: "What is photosynthesis?", Answer: "Plants make food.", Rating: RatingGood})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.Submit(context.Background(), Entry{Query: "प्रकाश क्या है?", Answer: "...", Rating: RatingBad, Comments: "too short"})
	require.NoError(t, err)

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, RatingGood, entries[0].Rating)
	assert.Equal(t, "प्रकाश क्या है?", entries[1].Query)
	assert.Equal(t, "too short", entries[1].Comments)
	assert.True(t, entries[1].Timestamp.Equal(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)))
}

func TestStore_SubmitValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	s := NewStore(path)

	_, err := s.Submit(context.Background(), Entry{Query: "  ", Rating: RatingGood})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Submit(context.Background(), Entry{Query: "q", Rating: 5})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "rejected feedback must not create the file")
}

func TestStore_ConcurrentSubmits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	s := NewStore(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Submit(context.Background(), Entry{Query: "q", Answer: "a", Rating: RatingGood})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, readEntries(t, path), 20)
}

func TestNewStore_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultPath, NewStore("").Path())
}
