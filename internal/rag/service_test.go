package rag

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/curriculum-rag/internal/document"
	"github.com/bull/curriculum-rag/internal/generation"
	"github.com/bull/curriculum-rag/internal/retrieval"
	"github.com/bull/curriculum-rag/internal/storage"
)

var vocabulary = []string{"photosynthesis", "light", "sound", "acid"}

// keywordEmbedder counts vocabulary words, with a constant last component so
// no vector is zero.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	v := make([]float32, len(vocabulary)+1)
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(text, w))
	}
	v[len(vocabulary)] = 0.1
	return v, nil
}

type recordingProvider struct {
	answer  string
	calls   atomic.Int32
	prompts []string
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Generate(_ context.Context, prompt string) (string, error) {
	p.calls.Add(1)
	p.prompts = append(p.prompts, prompt)
	return p.answer, nil
}

func chunk(id, content, filename, subject, grade string, page int) document.Chunk {
	return document.Chunk{
		ID:         id,
		Content:    content,
		PageNumber: page,
		Kind:       document.KindText,
		Metadata:   document.Metadata{Filename: filename, Subject: subject, Grade: grade},
	}
}

func newTestService(t *testing.T, chunks map[string][]document.Chunk, provider generation.Provider) *Service {
	t.Helper()
	ctx := context.Background()
	idx := storage.NewMemoryIndex(len(vocabulary) + 1)

	for ns, cs := range chunks {
		records := make([]storage.Record, len(cs))
		for i, c := range cs {
			v, err := keywordEmbedder{}.Embed(ctx, c.Content)
			require.NoError(t, err)
			records[i] = storage.Record{Chunk: c, Embedding: v}
		}
		require.NoError(t, idx.Upsert(ctx, ns, records))
	}

	retriever := retrieval.New(idx, keywordEmbedder{}, retrieval.Config{}, nil)
	chain := generation.NewChain([]generation.Provider{provider}, time.Second, nil)
	return NewService(retriever, chain, 3, nil)
}

func TestGenerateResponse_PopulatedNamespace(t *testing.T) {
	provider := &recordingProvider{answer: "Plants use sunlight to make food."}
	svc := newTestService(t, map[string][]document.Chunk{
		"Science_10": {
			chunk("1", "Photosynthesis needs light and chlorophyll.", "life.pdf", "Science", "10", 4),
			chunk("2", "Photosynthesis produces glucose.", "life.pdf", "Science", "10", 5),
			chunk("3", "Light reflects from mirrors.", "light.pdf", "Science", "10", 1),
			chunk("4", "Sound needs a medium.", "sound.pdf", "Science", "10", 2),
			chunk("5", "Acid turns litmus red.", "acids.pdf", "Science", "10", 7),
		},
		"Science_9": {
			chunk("6", "Photosynthesis photosynthesis photosynthesis.", "other.pdf", "Science", "9", 1),
		},
	}, provider)

	resp, err := svc.GenerateResponse(context.Background(), Query{
		Text:    "Can you explain the process of photosynthesis in green plants for me?",
		Subject: "Science",
		Grade:   "10",
	})
	require.NoError(t, err)

	assert.Equal(t, "Plants use sunlight to make food.", resp.Answer)
	assert.Equal(t, "en", resp.DetectedLanguage)
	require.NotEmpty(t, resp.Citations)
	assert.LessOrEqual(t, len(resp.Citations), 3)
	for _, c := range resp.Citations {
		assert.Equal(t, "Science", c.Subject)
		assert.Equal(t, "10", c.Grade)
	}
	assert.Equal(t, "life.pdf", resp.Citations[0].Source)

	require.Equal(t, int32(1), provider.calls.Load())
	assert.Contains(t, provider.prompts[0], "Photosynthesis needs light and chlorophyll.")
	assert.Contains(t, provider.prompts[0], "Can you explain the process of photosynthesis in green plants for me?")
}

func TestGenerateResponse_UnpopulatedIndex(t *testing.T) {
	provider := &recordingProvider{answer: "should not be used"}
	svc := newTestService(t, nil, provider)

	resp, err := svc.GenerateResponse(context.Background(), Query{Text: "What is sound?", Subject: "Science", Grade: "10"})
	require.NoError(t, err)

	assert.Equal(t, NoKnowledgeMessage, resp.Answer)
	assert.NotNil(t, resp.Citations)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestGenerateResponse_FallsBackToGlobal(t *testing.T) {
	provider := &recordingProvider{answer: "Sound travels as waves."}
	svc := newTestService(t, map[string][]document.Chunk{
		"Physics_11": {chunk("1", "Sound is a longitudinal wave.", "waves.pdf", "Physics", "11", 3)},
	}, provider)

	resp, err := svc.GenerateResponse(context.Background(), Query{Text: "What is sound?", Subject: "Science", Grade: "10"})
	require.NoError(t, err)

	require.Len(t, resp.Citations, 1)
	assert.Equal(t, Citation{Source: "waves.pdf", Page: "3", Grade: "11", Subject: "Physics"}, resp.Citations[0])
}

func TestGenerateResponse_FilenameFilter(t *testing.T) {
	provider := &recordingProvider{answer: "ok"}
	svc := newTestService(t, map[string][]document.Chunk{
		"Science_10": {
			chunk("1", "Light bends.", "light.pdf", "Science", "10", 1),
			chunk("2", "Light reflects.", "mirrors.pdf", "Science", "10", 2),
		},
	}, provider)

	resp, err := svc.GenerateResponse(context.Background(), Query{
		Text: "light", Subject: "Science", Grade: "10", Filename: "mirrors.pdf",
	})
	require.NoError(t, err)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "mirrors.pdf", resp.Citations[0].Source)
}

func TestGenerateResponse_AllProvidersFail(t *testing.T) {
	failing := &failingProvider{}
	svc := newTestService(t, map[string][]document.Chunk{
		"Science_10": {chunk("1", "Light bends.", "light.pdf", "Science", "10", 1)},
	}, failing)

	resp, err := svc.GenerateResponse(context.Background(), Query{Text: "light"})
	require.NoError(t, err)
	assert.Equal(t, generation.FallbackMessage, resp.Answer)
	assert.Len(t, resp.Citations, 1)
}

func TestGenerateResponse_EmptyQuery(t *testing.T) {
	svc := newTestService(t, nil, &recordingProvider{})
	_, err := svc.GenerateResponse(context.Background(), Query{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestGenerateResponse_HindiQuestion(t *testing.T) {
	provider := &recordingProvider{answer: "पौधे भोजन बनाते हैं।"}
	svc := newTestService(t, map[string][]document.Chunk{
		"Science_10": {chunk("1", "Photosynthesis makes food.", "life.pdf", "Science", "10", 1)},
	}, provider)

	resp, err := svc.GenerateResponse(context.Background(), Query{
		Text: "प्रकाश संश्लेषण की प्रक्रिया क्या है और यह पौधों में कैसे होती है?",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.DetectedLanguage)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "Respond in Hindi.")
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Generate(context.Context, string) (string, error) {
	return "", errors.New("down")
}

type visionProvider struct {
	recordingProvider
}

func (v *visionProvider) GenerateFromImage(_ context.Context, prompt string, _ generation.Image) (string, error) {
	v.prompts = append(v.prompts, prompt)
	return v.answer, nil
}

func TestExplainImage(t *testing.T) {
	vp := &visionProvider{recordingProvider: recordingProvider{answer: "The heart has four chambers."}}
	svc := newTestService(t, nil, vp)

	resp, err := svc.ExplainImage(context.Background(), "What does this diagram of the human heart show about the circulation of blood?", generation.Image{Data: []byte{1}, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "The heart has four chambers.", resp.Answer)
	assert.Empty(t, resp.Citations)
	require.Len(t, vp.prompts, 1)
	assert.Contains(t, vp.prompts[0], "Respond in English.")
}

func TestExplainImage_Unsupported(t *testing.T) {
	svc := newTestService(t, nil, &recordingProvider{})
	_, err := svc.ExplainImage(context.Background(), "", generation.Image{Data: []byte{1}})
	assert.ErrorIs(t, err, generation.ErrImageUnsupported)
}

func TestAssemble(t *testing.T) {
	chunks := []document.Chunk{
		chunk("1", "a", "light.pdf", "Science", "10", 3),
		{ID: "2", Content: "b"},
	}

	resp := Assemble("answer", chunks, "ta")
	assert.Equal(t, "answer", resp.Answer)
	assert.Equal(t, "ta", resp.DetectedLanguage)
	assert.Equal(t, []Citation{
		{Source: "light.pdf", Page: "3", Grade: "10", Subject: "Science"},
		{Source: "Unknown", Page: "?", Grade: "?", Subject: "?"},
	}, resp.Citations)

	empty := Assemble("ignored", nil, "en")
	assert.Equal(t, NoKnowledgeMessage, empty.Answer)
	assert.Equal(t, []Citation{}, empty.Citations)
}
