package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bull/curriculum-rag/internal/document"
	"github.com/bull/curriculum-rag/internal/namespace"
	"github.com/bull/curriculum-rag/internal/splitter"
	"github.com/bull/curriculum-rag/internal/storage"
)

// chunkIDSpace seeds content-derived chunk IDs.
var chunkIDSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("curriculum-rag/chunk"))

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []FailedDoc
	// Revision identifies the indexed source version when the source reports one.
	Revision string
	Duration time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	Path   string
	Reason string
}

// Embedder embeds chunk texts in order.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tunes indexing behaviour.
type Options struct {
	// Dedup derives chunk IDs from content so re-indexing replaces chunks
	// instead of appending duplicates.
	Dedup bool
}

// Pipeline splits pages into chunks, embeds them and writes them to the index.
type Pipeline struct {
	splitter *splitter.Recursive
	embedder Embedder
	index    storage.Index
	opts     Options
	logger   *slog.Logger
}

// NewPipeline creates a new indexing pipeline with the given components.
func NewPipeline(
	s *splitter.Recursive,
	embedder Embedder,
	index storage.Index,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if s == nil {
		s = splitter.New()
	}
	return &Pipeline{
		splitter: s,
		embedder: embedder,
		index:    index,
		opts:     opts,
		logger:   logger,
	}
}

// Index chunks the pages of one document and upserts them into the namespace
// derived from meta. It returns the number of chunks written.
func (p *Pipeline) Index(ctx context.Context, meta document.Metadata, pages []document.PageRecord) (int, error) {
	ns := namespace.ForMetadata(meta)

	chunks := p.chunk(ns, meta, pages)
	if len(chunks) == 0 {
		p.logger.Info("No text to index", "source", meta.SourcePath, "namespace", ns)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := p.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embeddings: got %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	records := make([]storage.Record, len(chunks))
	for i, c := range chunks {
		records[i] = storage.Record{Chunk: c, Embedding: embeddings[i]}
	}

	if err := p.index.Upsert(ctx, ns, records); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	p.logger.Info("Indexed document",
		"source", meta.SourcePath,
		"namespace", ns,
		"pages", len(pages),
		"chunks", len(chunks))

	return len(chunks), nil
}

// chunk splits every page independently so no chunk spans two pages.
func (p *Pipeline) chunk(ns string, meta document.Metadata, pages []document.PageRecord) []document.Chunk {
	var chunks []document.Chunk
	for _, page := range pages {
		kind := page.Kind
		if kind == "" {
			kind = document.KindText
		}

		for _, text := range p.splitter.Split(page.Content) {
			chunks = append(chunks, document.Chunk{
				ID:         p.chunkID(ns, meta, page.PageNumber, text),
				Content:    text,
				Metadata:   meta,
				PageNumber: page.PageNumber,
				Kind:       kind,
			})
		}
	}
	return chunks
}

func (p *Pipeline) chunkID(ns string, meta document.Metadata, page int, text string) string {
	if !p.opts.Dedup {
		return uuid.NewString()
	}
	key := ns + "\x00" + meta.SourcePath + "\x00" + strconv.Itoa(page) + "\x00" + text
	return uuid.NewSHA1(chunkIDSpace, []byte(key)).String()
}

// IndexAll reads every processed file from src and indexes it. A file that
// fails to parse or index is recorded and skipped.
func (p *Pipeline) IndexAll(ctx context.Context, src Source) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	if r, ok := src.(Revisioner); ok {
		rev, err := r.Revision(ctx)
		if err != nil {
			return nil, fmt.Errorf("get revision: %w", err)
		}
		result.Revision = rev
	}
	p.logger.Info("Starting indexing", "revision", result.Revision)

	names, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processed files: %w", err)
	}
	result.TotalDocs = len(names)
	p.logger.Info("Found processed files", "count", len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunks, err := p.indexFile(ctx, src, name)
		if err != nil {
			p.logger.Warn("Failed to index file", "path", name, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   name,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += chunks
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

func (p *Pipeline) indexFile(ctx context.Context, src Source, name string) (int, error) {
	data, err := src.Read(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	pf, err := document.ParseProcessedFile(data)
	if err != nil {
		return 0, err
	}

	meta := pf.Metadata
	if meta.SourcePath == "" {
		meta.SourcePath = name
	}
	if meta.Filename == "" {
		meta.Filename = path.Base(name)
	}

	return p.Index(ctx, meta, pf.Pages)
}
