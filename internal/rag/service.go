// Package rag answers curriculum questions: it retrieves context for a query,
// asks the generation chain for a grounded answer and attaches citations.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/curriculum-rag/internal/document"
	"github.com/bull/curriculum-rag/internal/generation"
	"github.com/bull/curriculum-rag/internal/language"
	"github.com/bull/curriculum-rag/internal/namespace"
	"github.com/bull/curriculum-rag/internal/prompt"
	"github.com/bull/curriculum-rag/internal/storage"
)

// ErrEmptyQuery is returned for a blank question.
var ErrEmptyQuery = errors.New("query text is empty")

// Searcher retrieves chunks, scoped to namespace when it is set.
type Searcher interface {
	Search(ctx context.Context, query, namespace string, k int, filter storage.Filter) []document.Chunk
}

// Generator is the generation chain.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
	GenerateFromImage(ctx context.Context, prompt string, img generation.Image) (generation.Outcome, error)
}

// Query is a student question with optional scoping.
type Query struct {
	Text     string `json:"query"`
	Grade    string `json:"grade,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Service orchestrates retrieval and generation.
type Service struct {
	searcher  Searcher
	generator Generator
	topK      int
	logger    *slog.Logger
}

// NewService creates a Service returning up to topK citations per answer.
func NewService(searcher Searcher, generator Generator, topK int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 3
	}
	return &Service{
		searcher:  searcher,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// GenerateResponse answers q. Retrieval and generation failures degrade to
// fixed messages; the only error is an empty question.
func (s *Service) GenerateResponse(ctx context.Context, q Query) (*Response, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	lang := language.Detect(text)
	ns, _ := namespace.Resolve(q.Subject, q.Grade)

	var filter storage.Filter
	if q.Filename != "" {
		filter = storage.Filter{storage.FilterFilename: q.Filename}
	}

	chunks := s.searcher.Search(ctx, text, ns, s.topK, filter)
	if len(chunks) == 0 {
		s.logger.Info("No context found for query",
			"namespace", ns,
			"language", lang)
		return Assemble("", nil, lang), nil
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	answer := s.generator.Generate(ctx, prompt.Build(text, strings.Join(contents, prompt.ContextSeparator), lang))

	s.logger.Info("Answered query",
		"namespace", ns,
		"language", lang,
		"chunks", len(chunks),
		"duration", time.Since(start))

	return Assemble(answer, chunks, lang), nil
}

// ExplainImage asks an image-capable provider to explain img in the language
// of question. It returns generation.ErrImageUnsupported when no such provider
// is configured.
func (s *Service) ExplainImage(ctx context.Context, question string, img generation.Image) (*Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		question = "Explain this image step by step for a student."
	}
	lang := language.Detect(question)

	p := question + "\n" + prompt.LanguageInstruction(lang)
	out, err := s.generator.GenerateFromImage(ctx, p, img)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Explained image",
		"provider", out.Provider,
		"degraded", out.Degraded,
		"language", lang)

	return &Response{
		Answer:           out.Text,
		Citations:        []Citation{},
		DetectedLanguage: lang,
	}, nil
}
