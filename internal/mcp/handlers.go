package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/curriculum-rag/internal/assessment"
	"github.com/bull/curriculum-rag/internal/document"
	"github.com/bull/curriculum-rag/internal/feedback"
	"github.com/bull/curriculum-rag/internal/generation"
	"github.com/bull/curriculum-rag/internal/library"
	"github.com/bull/curriculum-rag/internal/namespace"
	"github.com/bull/curriculum-rag/internal/rag"
	"github.com/bull/curriculum-rag/internal/storage"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
)

// makeAskHandler creates the ask_question tool handler.
func makeAskHandler(answerer Answerer) func(
	context.Context, *mcp.CallToolRequest, AskQuestionInput,
) (*mcp.CallToolResult, AskQuestionOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskQuestionInput) (
		*mcp.CallToolResult, AskQuestionOutput, error,
	) {
		resp, err := answerer.GenerateResponse(ctx, rag.Query{
			Text:     input.Query,
			Grade:    input.Grade,
			Subject:  input.Subject,
			Filename: input.Filename,
		})
		if err != nil {
			return nil, AskQuestionOutput{}, err
		}
		return nil, *resp, nil
	}
}

// makeSearchHandler creates the search_curriculum tool handler.
// Search is scoped to grade and subject when both are given and falls back to
// every partition otherwise.
func makeSearchHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchCurriculumInput,
) (*mcp.CallToolResult, SearchCurriculumOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchCurriculumInput) (
		*mcp.CallToolResult, SearchCurriculumOutput, error,
	) {
		if input.Query == "" {
			return nil, SearchCurriculumOutput{}, errors.New("query is required")
		}

		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		if maxResults > maxMaxResults {
			maxResults = maxMaxResults
		}

		ns, _ := namespace.Resolve(input.Subject, input.Grade)
		var filter storage.Filter
		if input.Filename != "" {
			filter = storage.Filter{storage.FilterFilename: input.Filename}
		}

		chunks := searcher.Search(ctx, input.Query, ns, maxResults, filter)
		if len(chunks) == 0 {
			return nil, SearchCurriculumOutput{
				Results: []Passage{},
				Message: "No matching passages found. Try broader search terms.",
			}, nil
		}

		return nil, SearchCurriculumOutput{Results: passages(chunks)}, nil
	}
}

func passages(chunks []document.Chunk) []Passage {
	out := make([]Passage, len(chunks))
	for i, c := range chunks {
		cit := rag.CitationFor(c)
		out[i] = Passage{
			Content: c.Content,
			Source:  cit.Source,
			Page:    cit.Page,
			Grade:   cit.Grade,
			Subject: cit.Subject,
		}
	}
	return out
}

// makeNamespacesHandler creates the list_namespaces tool handler.
func makeNamespacesHandler(index storage.Index) func(
	context.Context, *mcp.CallToolRequest, ListNamespacesInput,
) (*mcp.CallToolResult, ListNamespacesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListNamespacesInput) (
		*mcp.CallToolResult, ListNamespacesOutput, error,
	) {
		stats, err := index.Describe(ctx)
		if err != nil {
			return nil, ListNamespacesOutput{}, fmt.Errorf("failed to describe index: %w", err)
		}

		infos := make([]NamespaceInfo, 0, len(stats.Namespaces))
		for name, count := range stats.Namespaces {
			infos = append(infos, NamespaceInfo{Name: name, Vectors: count})
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

		return nil, ListNamespacesOutput{
			Namespaces:   infos,
			Dimension:    stats.Dimension,
			Metric:       string(stats.Metric),
			TotalVectors: stats.TotalVectors,
		}, nil
	}
}

// makeLibraryHandler creates the list_library tool handler.
func makeLibraryHandler(index storage.Index) func(
	context.Context, *mcp.CallToolRequest, ListLibraryInput,
) (*mcp.CallToolResult, ListLibraryOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListLibraryInput) (
		*mcp.CallToolResult, ListLibraryOutput, error,
	) {
		lib, err := library.List(ctx, index)
		if err != nil {
			return nil, ListLibraryOutput{}, fmt.Errorf("failed to list library: %w", err)
		}
		return nil, *lib, nil
	}
}

// makeAssessmentHandler creates the generate_assessment tool handler.
// A topic with no indexed content is reported in the output, not as an error.
func makeAssessmentHandler(gen AssessmentGenerator) func(
	context.Context, *mcp.CallToolRequest, GenerateAssessmentInput,
) (*mcp.CallToolResult, GenerateAssessmentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GenerateAssessmentInput) (
		*mcp.CallToolResult, GenerateAssessmentOutput, error,
	) {
		a, err := gen.Generate(ctx, input.Topic, input.Filename)
		if errors.Is(err, assessment.ErrNoContent) {
			return nil, GenerateAssessmentOutput{
				Found:   false,
				Message: "No content found for this topic to generate an assessment.",
			}, nil
		}
		if err != nil {
			return nil, GenerateAssessmentOutput{}, err
		}
		return nil, GenerateAssessmentOutput{Assessment: a, Found: true}, nil
	}
}

// makeExplainImageHandler creates the explain_image tool handler.
func makeExplainImageHandler(answerer Answerer) func(
	context.Context, *mcp.CallToolRequest, ExplainImageInput,
) (*mcp.CallToolResult, ExplainImageOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ExplainImageInput) (
		*mcp.CallToolResult, ExplainImageOutput, error,
	) {
		data, err := base64.StdEncoding.DecodeString(input.ImageBase64)
		if err != nil {
			return nil, ExplainImageOutput{}, fmt.Errorf("invalid image_base64: %w", err)
		}

		resp, err := answerer.ExplainImage(ctx, input.Question, generation.Image{
			Data:     data,
			MIMEType: input.MIMEType,
		})
		if err != nil {
			return nil, ExplainImageOutput{}, err
		}
		return nil, *resp, nil
	}
}

// makeFeedbackHandler creates the submit_feedback tool handler.
func makeFeedbackHandler(recorder FeedbackRecorder) func(
	context.Context, *mcp.CallToolRequest, SubmitFeedbackInput,
) (*mcp.CallToolResult, SubmitFeedbackOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SubmitFeedbackInput) (
		*mcp.CallToolResult, SubmitFeedbackOutput, error,
	) {
		entry, err := recorder.Submit(ctx, feedback.Entry{
			Query:    input.Query,
			Answer:   input.Answer,
			Rating:   input.Rating,
			Comments: input.Comments,
		})
		if err != nil {
			return nil, SubmitFeedbackOutput{}, err
		}
		return nil, SubmitFeedbackOutput{Status: "success", ID: entry.ID}, nil
	}
}
