// Package mcp exposes the curriculum assistant as MCP tools.
package mcp

import (
	"github.com/bull/curriculum-rag/internal/assessment"
	"github.com/bull/curriculum-rag/internal/library"
	"github.com/bull/curriculum-rag/internal/rag"
)

// AskQuestionInput defines the input parameters for the ask_question tool.
type AskQuestionInput struct {
	// Query is the student's question in any supported language.
	Query string `json:"query" jsonschema:"The student's question"`
	// Grade scopes retrieval to one class when set together with Subject.
	Grade string `json:"grade,omitempty" jsonschema:"Class or grade, e.g. 10"`
	// Subject scopes retrieval to one subject when set together with Grade.
	Subject string `json:"subject,omitempty" jsonschema:"Subject, e.g. Science"`
	// Filename restricts retrieval to one textbook file.
	Filename string `json:"filename,omitempty" jsonschema:"Restrict the answer to one source file"`
}

// AskQuestionOutput is the grounded answer.
type AskQuestionOutput = rag.Response

// SearchCurriculumInput defines the input parameters for the search_curriculum tool.
type SearchCurriculumInput struct {
	Query    string `json:"query" jsonschema:"The semantic search query"`
	Grade    string `json:"grade,omitempty" jsonschema:"Class or grade to search first"`
	Subject  string `json:"subject,omitempty" jsonschema:"Subject to search first"`
	Filename string `json:"filename,omitempty" jsonschema:"Restrict results to one source file"`
	// MaxResults is the maximum number of passages to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"Maximum number of passages to return (1-20)"`
}

// SearchCurriculumOutput contains the matching passages.
type SearchCurriculumOutput struct {
	Results []Passage `json:"results"`
	// Message provides informational context (e.g., "No matching passages found").
	Message string `json:"message,omitempty"`
}

// Passage is one retrieved chunk with its citation.
type Passage struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    string `json:"page"`
	Grade   string `json:"grade"`
	Subject string `json:"subject"`
}

// ListNamespacesInput takes no parameters.
type ListNamespacesInput struct{}

// ListNamespacesOutput describes the index partitions.
type ListNamespacesOutput struct {
	Namespaces   []NamespaceInfo `json:"namespaces"`
	Dimension    int             `json:"dimension"`
	Metric       string          `json:"metric"`
	TotalVectors uint64          `json:"total_vectors"`
}

// NamespaceInfo is one partition and its vector count.
type NamespaceInfo struct {
	Name    string `json:"name"`
	Vectors uint64 `json:"vectors"`
}

// ListLibraryInput takes no parameters.
type ListLibraryInput struct{}

// ListLibraryOutput is the indexed library grouped by subject.
type ListLibraryOutput = library.Library

// GenerateAssessmentInput defines the input parameters for the generate_assessment tool.
type GenerateAssessmentInput struct {
	Topic    string `json:"topic" jsonschema:"Topic to build flashcards and a quiz for"`
	Filename string `json:"filename,omitempty" jsonschema:"Restrict the context to one source file"`
}

// GenerateAssessmentOutput carries the assessment, or a message when the
// topic has no indexed content.
type GenerateAssessmentOutput struct {
	Assessment *assessment.Assessment `json:"assessment,omitempty"`
	Found      bool                   `json:"found"`
	Message    string                 `json:"message,omitempty"`
}

// ExplainImageInput defines the input parameters for the explain_image tool.
type ExplainImageInput struct {
	Question string `json:"question,omitempty" jsonschema:"What to explain about the image"`
	// ImageBase64 is the standard base64 encoding of the image bytes.
	ImageBase64 string `json:"image_base64" jsonschema:"Base64 encoded image"`
	MIMEType    string `json:"mime_type,omitempty" jsonschema:"Image MIME type, defaults to image/png"`
}

// ExplainImageOutput is the explanation.
type ExplainImageOutput = rag.Response

// SubmitFeedbackInput defines the input parameters for the submit_feedback tool.
type SubmitFeedbackInput struct {
	Query    string `json:"query" jsonschema:"The question that was asked"`
	Answer   string `json:"answer" jsonschema:"The answer being rated"`
	Rating   int    `json:"rating" jsonschema:"1 for a good answer, 0 for a bad one"`
	Comments string `json:"comments,omitempty" jsonschema:"Optional free-form comments"`
}

// SubmitFeedbackOutput confirms the stored rating.
type SubmitFeedbackOutput struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}
