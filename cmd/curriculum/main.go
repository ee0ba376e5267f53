// Package main provides the curriculum CLI for indexing processed textbooks
// and querying the index from a terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/curriculum-rag/internal/app"
	"github.com/bull/curriculum-rag/internal/config"
	"github.com/bull/curriculum-rag/internal/library"
	"github.com/bull/curriculum-rag/internal/logger"
	"github.com/bull/curriculum-rag/internal/rag"
	"github.com/bull/curriculum-rag/internal/storage"
)

var (
	configPath string

	indexDir    string
	indexGitHub string
	indexReset  bool

	askGrade    string
	askSubject  string
	askFilename string

	assessFilename string
)

var rootCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "Curriculum RAG indexing and query tool",
	Long:  "CLI tool for indexing processed NCERT textbook pages and asking questions against the index",
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index processed page files",
	Long: `Reads processed page files and writes their chunks to the vector store.

This command:
1. Connects to the vector store and ensures the index exists
2. Optionally clears the existing collection (--reset)
3. Reads every processed JSON file from a directory or GitHub repository
4. Splits pages into chunks and generates embeddings
5. Stores chunks in the Subject_Grade partition of their document

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)
  GITHUB_TOKEN   GitHub token for higher rate limits (optional)`,
	RunE: runIndex,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and print the JSON answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var assessCmd = &cobra.Command{
	Use:   "assess [topic]",
	Short: "Generate flashcards and a quiz for a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAssess,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index partitions and the indexed library",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	indexCmd.Flags().StringVar(&indexDir, "dir", "", "directory of processed JSON files (overrides indexing.dir)")
	indexCmd.Flags().StringVar(&indexGitHub, "github", "", "owner/repo holding processed files (overrides indexing.github)")
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "clear the Qdrant collection before indexing")

	askCmd.Flags().StringVar(&askGrade, "grade", "", "class or grade to search first")
	askCmd.Flags().StringVar(&askSubject, "subject", "", "subject to search first")
	askCmd.Flags().StringVar(&askFilename, "filename", "", "restrict the answer to one source file")

	assessCmd.Flags().StringVar(&assessFilename, "filename", "", "restrict the context to one source file")

	rootCmd.AddCommand(indexCmd, askCmd, assessCmd, statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger.New(cfg.Log.Level))
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if indexDir != "" {
		cfg.Indexing.Dir = indexDir
		cfg.Indexing.GitHub = config.GitHubSourceConfig{}
	}
	if indexGitHub != "" {
		owner, repo, ok := strings.Cut(indexGitHub, "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("--github must be owner/repo, got %q", indexGitHub)
		}
		cfg.Indexing.GitHub.Owner = owner
		cfg.Indexing.GitHub.Repo = repo
	}

	fmt.Println("Starting indexing...")
	a, err := app.New(ctx, cfg, logger.New(cfg.Log.Level))
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.Source()
	if err != nil {
		return err
	}

	if indexReset {
		store, ok := a.Index.(*storage.QdrantStorage)
		if !ok {
			return fmt.Errorf("--reset requires the qdrant vector store")
		}
		fmt.Println("Clearing existing collection...")
		if err := store.ClearCollection(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
	}

	result, err := a.Pipeline.IndexAll(ctx, src)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Indexing complete!")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))
	if result.Revision != "" {
		fmt.Printf("  Commit: %s\n", result.Revision)
	}

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.RAG.GenerateResponse(ctx, rag.Query{
		Text:     strings.Join(args, " "),
		Grade:    askGrade,
		Subject:  askSubject,
		Filename: askFilename,
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Assessments.Generate(ctx, strings.Join(args, " "), assessFilename)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Index.Describe(ctx)
	if err != nil {
		return fmt.Errorf("failed to describe index: %w", err)
	}

	fmt.Printf("Vector store: %s (dimension %d, metric %s)\n", a.Config.VectorStore.Type, stats.Dimension, stats.Metric)
	fmt.Printf("Total vectors: %d\n", stats.TotalVectors)
	fmt.Printf("Providers: %s\n", strings.Join(a.Chain.Providers(), ", "))

	names := make([]string, 0, len(stats.Namespaces))
	for ns := range stats.Namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)

	fmt.Println()
	fmt.Println("Namespaces:")
	for _, ns := range names {
		fmt.Printf("  %-30s %d\n", ns, stats.Namespaces[ns])
	}

	lib, err := library.List(ctx, a.Index)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Library:")
	for _, s := range lib.Subjects {
		fmt.Printf("  %s\n", s.Subject)
		for _, c := range s.Chapters {
			fmt.Printf("    - %s (grade %s)\n", c.Filename, c.Grade)
		}
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
