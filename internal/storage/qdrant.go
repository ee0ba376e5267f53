package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/curriculum-rag/internal/document"
)

const (
	vectorName    = "content"
	upsertBatch   = 100
	maxFacetHits  = 1000
	defaultPort   = 6334
	defaultHost   = "localhost"
	healthTimeout = 30 * time.Second
)

// QdrantConfig holds connection and collection settings.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// Dimension is the embedding model's vector size.
	Dimension int
	// Distance used when the collection is created. Defaults to cosine.
	Metric Metric
}

// QdrantStorage implements Index on a single Qdrant collection. Partitions are
// a keyword-indexed "namespace" payload field so one collection holds every
// subject and grade.
type QdrantStorage struct {
	client     *qdrant.Client
	collection string
	dimension  int
	logger     *slog.Logger

	mu     sync.RWMutex
	metric Metric
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It retries the health check on startup and fails fast if Qdrant stays unreachable.
func NewQdrantStorage(cfg QdrantConfig, logger *slog.Logger) (*QdrantStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollectionName
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", cfg.Dimension)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &QdrantStorage{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		metric:     cfg.Metric,
		logger:     logger,
	}

	if err := s.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return s, nil
}

func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = healthTimeout
	return b
}

func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(newRetryBackOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.GetTitle() == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureIndex creates the collection if it is missing. An existing collection
// whose vector size differs from the embedding model is deleted and recreated,
// which discards everything indexed so far.
func (s *QdrantStorage) EnsureIndex(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("failed to get collection info: %w", err)
		}

		params := vectorParams(info)
		size := int(params.GetSize())
		if size == s.dimension {
			s.setMetric(metricFromDistance(params.GetDistance()))
			return nil
		}

		s.logger.Error("Index dimension does not match embedding model, recreating collection; all indexed vectors will be lost",
			"collection", s.collection,
			"index_dimension", size,
			"model_dimension", s.dimension,
			"points", info.GetPointsCount())

		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.dimension),
				Distance: distanceFromMetric(s.Metric()),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	s.logger.Info("Created collection",
		"collection", s.collection,
		"dimension", s.dimension,
		"metric", s.Metric())

	return nil
}

// createPayloadIndexes indexes every field used in filters.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		fieldNamespace,
		fieldFilename,
		fieldGrade,
		fieldSubject,
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// Metric returns the collection's scoring metric. It is the configured metric
// until EnsureIndex adopts the metric of an existing collection.
func (s *QdrantStorage) Metric() Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metric
}

func (s *QdrantStorage) setMetric(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metric = m
}

// ClearCollection drops the collection and recreates it empty.
func (s *QdrantStorage) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureIndex(ctx)
}

// Describe reports the collection's dimension, metric and per-namespace counts.
func (s *QdrantStorage) Describe(ctx context.Context) (*IndexStats, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
	}

	hits, err := s.client.Facet(ctx, &qdrant.FacetCounts{
		CollectionName: s.collection,
		Key:            fieldNamespace,
		Limit:          qdrant.PtrOf(uint64(maxFacetHits)),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count namespaces: %w", err)
	}

	namespaces := make(map[string]uint64, len(hits))
	for _, hit := range hits {
		if name := hit.GetValue().GetStringValue(); name != "" {
			namespaces[name] = hit.GetCount()
		}
	}

	params := vectorParams(info)
	return &IndexStats{
		Dimension:    int(params.GetSize()),
		Metric:       metricFromDistance(params.GetDistance()),
		Namespaces:   namespaces,
		TotalVectors: info.GetPointsCount(),
	}, nil
}

// Upsert stores records in the namespace, batched in groups of 100.
func (s *QdrantStorage) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for i, rec := range records {
		if len(rec.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(rec.Embedding), s.dimension)
		}
	}

	for i := 0; i < len(records); i += upsertBatch {
		end := min(i+upsertBatch, len(records))

		batch := records[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, rec := range batch {
			points[j] = &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(rec.Chunk.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(rec.Embedding...),
				}),
				Payload: qdrant.NewValueMap(chunkPayload(namespace, rec.Chunk)),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newRetryBackOff(), ctx))
}

// Query runs a vector search restricted to one namespace and the optional filter.
// Scores are returned as Qdrant reports them.
func (s *QdrantStorage) Query(ctx context.Context, req QueryRequest) ([]ScoredChunk, error) {
	if len(req.Vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(req.Vector), s.dimension)
	}
	if req.Limit <= 0 {
		return nil, nil
	}

	filter, err := buildFilter(req.Namespace, req.Filter)
	if err != nil {
		return nil, err
	}

	using := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Using:          &using,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(req.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query namespace %s: %w", req.Namespace, err)
	}

	scored := make([]ScoredChunk, 0, len(results))
	for _, result := range results {
		scored = append(scored, ScoredChunk{
			Chunk: chunkFromPayload(result.GetId().GetUuid(), result.GetPayload()),
			Score: float64(result.GetScore()),
		})
	}

	return scored, nil
}

// Sources returns the distinct filenames stored in a namespace, sorted.
func (s *QdrantStorage) Sources(ctx context.Context, namespace string) ([]string, error) {
	hits, err := s.client.Facet(ctx, &qdrant.FacetCounts{
		CollectionName: s.collection,
		Key:            fieldFilename,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldNamespace, namespace)},
		},
		Limit: qdrant.PtrOf(uint64(maxFacetHits)),
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sources for %s: %w", namespace, err)
	}

	files := make([]string, 0, len(hits))
	for _, hit := range hits {
		if name := hit.GetValue().GetStringValue(); name != "" {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func buildFilter(namespace string, extra Filter) (*qdrant.Filter, error) {
	must := []*qdrant.Condition{qdrant.NewMatch(fieldNamespace, namespace)}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, ok := metadataField(document.Chunk{}, k); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFilterField, k)
		}
		must = append(must, qdrant.NewMatch(k, extra[k]))
	}

	return &qdrant.Filter{Must: must}, nil
}

func chunkPayload(namespace string, c document.Chunk) map[string]any {
	return map[string]any{
		fieldNamespace:      namespace,
		fieldContent:        c.Content,
		fieldSource:         c.Metadata.SourcePath,
		fieldFilename:       c.Metadata.Filename,
		fieldGrade:          c.Metadata.Grade,
		fieldSubject:        c.Metadata.Subject,
		fieldPageNumber:     c.PageNumber,
		fieldExtractionKind: string(c.Kind),
	}
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) document.Chunk {
	return document.Chunk{
		ID:      id,
		Content: payload[fieldContent].GetStringValue(),
		Metadata: document.Metadata{
			SourcePath: payload[fieldSource].GetStringValue(),
			Filename:   payload[fieldFilename].GetStringValue(),
			Grade:      payload[fieldGrade].GetStringValue(),
			Subject:    payload[fieldSubject].GetStringValue(),
		},
		PageNumber: int(payload[fieldPageNumber].GetIntegerValue()),
		Kind:       document.ExtractionKind(payload[fieldExtractionKind].GetStringValue()),
	}
}

// vectorParams returns the parameters of the content vector, whether the
// collection was created with named or unnamed vectors.
func vectorParams(info *qdrant.CollectionInfo) *qdrant.VectorParams {
	cfg := info.GetConfig().GetParams().GetVectorsConfig()
	if p := cfg.GetParams(); p != nil {
		return p
	}
	return cfg.GetParamsMap().GetMap()[vectorName]
}

func distanceFromMetric(m Metric) qdrant.Distance {
	switch m {
	case MetricDot:
		return qdrant.Distance_Dot
	case MetricEuclid:
		return qdrant.Distance_Euclid
	case MetricManhattan:
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

func metricFromDistance(d qdrant.Distance) Metric {
	switch d {
	case qdrant.Distance_Dot:
		return MetricDot
	case qdrant.Distance_Euclid:
		return MetricEuclid
	case qdrant.Distance_Manhattan:
		return MetricManhattan
	default:
		return MetricCosine
	}
}
