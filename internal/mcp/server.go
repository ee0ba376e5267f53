package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/curriculum-rag/internal/assessment"
	"github.com/bull/curriculum-rag/internal/document"
	"github.com/bull/curriculum-rag/internal/feedback"
	"github.com/bull/curriculum-rag/internal/generation"
	"github.com/bull/curriculum-rag/internal/rag"
	"github.com/bull/curriculum-rag/internal/storage"
)

// Answerer answers questions and explains images.
type Answerer interface {
	GenerateResponse(ctx context.Context, q rag.Query) (*rag.Response, error)
	ExplainImage(ctx context.Context, question string, img generation.Image) (*rag.Response, error)
}

// Searcher retrieves passages, scoped first and global on a miss.
type Searcher interface {
	Search(ctx context.Context, query, namespace string, k int, filter storage.Filter) []document.Chunk
}

// AssessmentGenerator builds flashcards and a quiz for a topic.
type AssessmentGenerator interface {
	Generate(ctx context.Context, topic, filename string) (*assessment.Assessment, error)
}

// FeedbackRecorder stores a rating of an answer.
type FeedbackRecorder interface {
	Submit(ctx context.Context, e feedback.Entry) (feedback.Entry, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	tools  []*mcp.Tool
}

// Config holds server dependencies.
type Config struct {
	Answerer    Answerer
	Searcher    Searcher
	Index       storage.Index
	Assessments AssessmentGenerator
	Feedback    FeedbackRecorder
	// Version is reported to clients during initialization.
	Version string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "curriculum-rag",
		Version: version,
	}

	s := &Server{server: mcp.NewServer(impl, nil)}

	addTool(s, &mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a student's question from the indexed NCERT textbooks. Scoped to a grade and subject when both are given. Answers in the question's language and cites the source pages.",
	}, makeAskHandler(cfg.Answerer))

	addTool(s, &mcp.Tool{
		Name:        "search_curriculum",
		Description: "Search the indexed textbooks semantically and return matching passages with their source, page, grade and subject.",
	}, makeSearchHandler(cfg.Searcher))

	addTool(s, &mcp.Tool{
		Name:        "list_namespaces",
		Description: "List the index partitions (Subject_Grade) with their vector counts.",
	}, makeNamespacesHandler(cfg.Index))

	addTool(s, &mcp.Tool{
		Name:        "list_library",
		Description: "List the indexed textbook chapters grouped by subject.",
	}, makeLibraryHandler(cfg.Index))

	addTool(s, &mcp.Tool{
		Name:        "generate_assessment",
		Description: "Generate three flashcards and one multiple choice question for a topic from the indexed textbooks.",
	}, makeAssessmentHandler(cfg.Assessments))

	addTool(s, &mcp.Tool{
		Name:        "explain_image",
		Description: "Explain a diagram or photo of a textbook problem. Requires an image-capable provider.",
	}, makeExplainImageHandler(cfg.Answerer))

	if cfg.Feedback != nil {
		addTool(s, &mcp.Tool{
			Name:        "submit_feedback",
			Description: "Rate an answer as helpful (1) or unhelpful (0), with optional comments.",
		}, makeFeedbackHandler(cfg.Feedback))
	}

	return s
}

// addTool registers a tool and records it for the landing page.
func addTool[In, Out any](s *Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[In, Out]) {
	mcp.AddTool(s.server, tool, handler)
	s.tools = append(s.tools, tool)
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
