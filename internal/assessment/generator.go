// Package assessment builds flashcards and a multiple choice question for a
// curriculum topic from retrieved textbook context.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bull/curriculum-rag/internal/document"
	"github.com/bull/curriculum-rag/internal/generation"
	"github.com/bull/curriculum-rag/internal/llmjson"
	"github.com/bull/curriculum-rag/internal/prompt"
	"github.com/bull/curriculum-rag/internal/storage"
)

const (
	// DefaultMaxTokens is the maximum context length before truncation (in tokens).
	DefaultMaxTokens = 4000
	// ContextChunks is the number of chunks retrieved per topic.
	ContextChunks = 5
)

var (
	// ErrNoContent is returned when retrieval finds nothing for the topic.
	ErrNoContent = errors.New("no content found for this topic")
	// ErrEmptyTopic is returned for a blank topic.
	ErrEmptyTopic = errors.New("topic is empty")
)

// Flashcard is a single question and answer pair.
type Flashcard struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

// Quiz is a multiple choice question.
type Quiz struct {
	Question string   `json:"q"`
	Options  []string `json:"options"`
	Correct  string   `json:"correct"`
}

// Assessment is the generated study material for a topic.
type Assessment struct {
	Topic      string      `json:"topic"`
	Flashcards []Flashcard `json:"flashcards"`
	Quiz       Quiz        `json:"quiz"`
	// Generated is false when the fallback template was used.
	Generated bool `json:"generated"`
}

// Searcher retrieves chunks across all partitions.
type Searcher interface {
	GlobalSearch(ctx context.Context, query string, k int, filter storage.Filter) []document.Chunk
}

// Chain produces text from a prompt, reporting whether it had to degrade.
type Chain interface {
	GenerateDetailed(ctx context.Context, prompt string) generation.Outcome
}

// Generator produces assessments from retrieved context.
type Generator struct {
	searcher  Searcher
	chain     Chain
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator creates an assessment generator.
// Optional maxTokens parameter sets truncation limit (defaults to DefaultMaxTokens).
func NewGenerator(searcher Searcher, chain Chain, logger *slog.Logger, maxTokens ...int) *Generator {
	max := DefaultMaxTokens
	if len(maxTokens) > 0 && maxTokens[0] > 0 {
		max = maxTokens[0]
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		searcher:  searcher,
		chain:     chain,
		maxTokens: max,
		logger:    logger,
	}
}

// Generate builds an assessment for topic, optionally restricted to one
// source file. Model output that is not valid JSON is replaced by Fallback.
func (g *Generator) Generate(ctx context.Context, topic, filename string) (*Assessment, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	var filter storage.Filter
	if filename != "" {
		filter = storage.Filter{storage.FilterFilename: filename}
	}

	chunks := g.searcher.GlobalSearch(ctx, topic, ContextChunks, filter)
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	passage := g.truncateContent(strings.Join(contents, prompt.ContextSeparator))

	out := g.chain.GenerateDetailed(ctx, buildPrompt(topic, passage))
	if out.Degraded {
		g.logger.Warn("Generation unavailable, using fallback assessment", "topic", topic)
		return Fallback(topic), nil
	}

	a, err := parse(out.Text)
	if err != nil {
		g.logger.Warn("Failed to parse assessment, using fallback",
			"topic", topic,
			"provider", out.Provider,
			"error", err)
		return Fallback(topic), nil
	}
	a.Topic = topic
	a.Generated = true

	g.logger.Info("Generated assessment",
		"topic", topic,
		"provider", out.Provider,
		"flashcards", len(a.Flashcards))

	return a, nil
}

func buildPrompt(topic, passage string) string {
	return fmt.Sprintf(`Based on the following NCERT context about "%s", generate 3 flashcards (question and answer) and 1 multiple choice question with 4 options and the correct answer.

Respond in JSON format only:
{"flashcards": [{"q": "question", "a": "answer"}], "quiz": {"q": "question", "options": ["A", "B", "C", "D"], "correct": "A"}}

Context:
%s`, topic, passage)
}

func parse(text string) (*Assessment, error) {
	var a Assessment
	if err := llmjson.Decode(text, &a); err != nil {
		return nil, err
	}
	if len(a.Flashcards) == 0 {
		return nil, errors.New("no flashcards in response")
	}
	if a.Quiz.Question == "" || len(a.Quiz.Options) < 2 {
		return nil, errors.New("incomplete quiz in response")
	}
	return &a, nil
}

// Fallback returns a template assessment for topic.
func Fallback(topic string) *Assessment {
	return &Assessment{
		Topic: topic,
		Flashcards: []Flashcard{
			{Question: fmt.Sprintf("What is the main idea of %s?", topic), Answer: "Review the chapter summary in your NCERT textbook."},
			{Question: fmt.Sprintf("Why is %s important?", topic), Answer: "It builds on concepts used later in the chapter."},
			{Question: fmt.Sprintf("Which key terms are associated with %s?", topic), Answer: "See the highlighted terms in the chapter."},
		},
		Quiz: Quiz{
			Question: fmt.Sprintf("According to the text, which of these is true about %s?", topic),
			Options:  []string{"Option A", "Option B", "Option C", "Option D"},
			Correct:  "Option A",
		},
	}
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token. Characters are runes, so
// Devanagari and other multi-byte scripts are never cut mid-rune.
func (g *Generator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4

	chars := utf8.RuneCountInString(content)
	if chars <= maxChars {
		return content
	}

	g.logger.Warn("Truncating assessment context",
		"from_chars", chars,
		"to_chars", maxChars,
		"max_tokens", g.maxTokens)

	n := 0
	for i := range content {
		if n == maxChars {
			return content[:i]
		}
		n++
	}
	return content
}
