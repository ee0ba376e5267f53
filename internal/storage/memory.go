package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index scored by cosine similarity. It backs
// tests and the offline CLI mode; nothing is persisted.
type MemoryIndex struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string][]Record
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension:  dimension,
		namespaces: make(map[string][]Record),
	}
}

// EnsureIndex is a no-op; the memory index always matches its dimension.
func (m *MemoryIndex) EnsureIndex(ctx context.Context) error {
	return ctx.Err()
}

// Metric is always cosine.
func (m *MemoryIndex) Metric() Metric {
	return MetricCosine
}

func (m *MemoryIndex) Describe(ctx context.Context) (*IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &IndexStats{
		Dimension:  m.dimension,
		Metric:     MetricCosine,
		Namespaces: make(map[string]uint64, len(m.namespaces)),
	}
	for name, records := range m.namespaces {
		if len(records) == 0 {
			continue
		}
		stats.Namespaces[name] = uint64(len(records))
		stats.TotalVectors += uint64(len(records))
	}
	return stats, nil
}

// Upsert adds records to the namespace, replacing any record with the same chunk ID.
func (m *MemoryIndex) Upsert(ctx context.Context, namespace string, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, rec := range records {
		if len(rec.Embedding) != m.dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(rec.Embedding), m.dimension)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.namespaces[namespace]
	positions := make(map[string]int, len(existing))
	for i, rec := range existing {
		positions[rec.Chunk.ID] = i
	}

	for _, rec := range records {
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		if i, ok := positions[rec.Chunk.ID]; ok && rec.Chunk.ID != "" {
			existing[i] = rec
			continue
		}
		positions[rec.Chunk.ID] = len(existing)
		existing = append(existing, rec)
	}
	m.namespaces[namespace] = existing

	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, req QueryRequest) ([]ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(req.Vector), m.dimension)
	}
	for key := range req.Filter {
		if _, ok := metadataField(Record{}.Chunk, key); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFilterField, key)
		}
	}
	if req.Limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var scored []ScoredChunk
	for _, rec := range m.namespaces[req.Namespace] {
		if !matches(rec, req.Filter) {
			continue
		}
		scored = append(scored, ScoredChunk{
			Chunk: rec.Chunk,
			Score: cosine(req.Vector, rec.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > req.Limit {
		scored = scored[:req.Limit]
	}
	return scored, nil
}

func (m *MemoryIndex) Sources(ctx context.Context, namespace string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var files []string
	for _, rec := range m.namespaces[namespace] {
		name := rec.Chunk.Metadata.Filename
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

func (m *MemoryIndex) Health(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryIndex) Close() error {
	return nil
}

func matches(rec Record, filter Filter) bool {
	for key, want := range filter {
		got, _ := metadataField(rec.Chunk, key)
		if got != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
