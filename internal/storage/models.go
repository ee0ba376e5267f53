package storage

import (
	"context"

	"github.com/bull/curriculum-rag/internal/document"
)

// Metric identifies how the index scores a match.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclid    Metric = "euclid"
	MetricManhattan Metric = "manhattan"
)

// HigherIsBetter reports whether larger scores mean closer matches.
// Distance metrics return smaller values for closer vectors.
func (m Metric) HigherIsBetter() bool {
	return m != MetricEuclid && m != MetricManhattan
}

// Record is a chunk paired with its embedding, ready for upsert.
type Record struct {
	Chunk     document.Chunk
	Embedding []float32
}

// ScoredChunk is a chunk returned from a vector query with the index's raw score.
type ScoredChunk struct {
	Chunk document.Chunk
	Score float64
}

// Filter restricts a query to chunks whose metadata fields equal the given values.
// Supported keys are "source", "filename", "grade" and "subject".
type Filter map[string]string

// QueryRequest describes a single-partition vector query.
type QueryRequest struct {
	Vector    []float32
	Namespace string
	Limit     int
	Filter    Filter
}

// IndexStats summarises the index: vector size, scoring metric and per-partition counts.
type IndexStats struct {
	Dimension    int
	Metric       Metric
	Namespaces   map[string]uint64
	TotalVectors uint64
}

// Index is the vector index capability consumed by the indexer and retriever.
// Implementations must be safe for concurrent use.
type Index interface {
	// EnsureIndex creates the index, recreating it when its dimension does not
	// match the embedding model. Recreation drops every stored vector.
	EnsureIndex(ctx context.Context) error
	Describe(ctx context.Context) (*IndexStats, error)
	// Metric reports the scoring metric without a round trip to the index.
	Metric() Metric
	Upsert(ctx context.Context, namespace string, records []Record) error
	Query(ctx context.Context, req QueryRequest) ([]ScoredChunk, error)
	// Sources lists the distinct filenames stored in a partition.
	Sources(ctx context.Context, namespace string) ([]string, error)
	Health(ctx context.Context) error
	Close() error
}

// Payload field names shared by the index implementations.
const (
	fieldNamespace      = "namespace"
	fieldContent        = "content"
	fieldSource         = "source"
	fieldFilename       = "filename"
	fieldGrade          = "grade"
	fieldSubject        = "subject"
	fieldPageNumber     = "page_number"
	fieldExtractionKind = "extraction_kind"
)

// FilterFilename restricts a query to one source document.
const FilterFilename = fieldFilename

// DefaultCollectionName is the Qdrant collection holding every partition.
const DefaultCollectionName = "curriculum"

// metadataField returns the chunk metadata value a filter key refers to.
func metadataField(chunk document.Chunk, key string) (string, bool) {
	switch key {
	case fieldSource:
		return chunk.Metadata.SourcePath, true
	case fieldFilename:
		return chunk.Metadata.Filename, true
	case fieldGrade:
		return chunk.Metadata.Grade, true
	case fieldSubject:
		return chunk.Metadata.Subject, true
	}
	return "", false
}
