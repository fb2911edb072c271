// Package main is the Kotaeru CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/cli"
	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/retrieval"
	"github.com/hyperjump/kotaeru/internal/rewrite"
	"github.com/hyperjump/kotaeru/internal/server"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vectorstore"
	"github.com/hyperjump/kotaeru/internal/watcher"
	"github.com/hyperjump/kotaeru/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotaeru/config.yaml"

const defaultServerURL = "http://localhost:8000"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys commonly live in a local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "build":
		runBuild()
	case "retrieve":
		runRetrieve()
	case "query":
		runQuery()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotaeru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Load the persisted store if one exists; otherwise build from the
	// document directory.
	store, err := vectorstore.Load(cfg.Store.BasePath, components.Embedder.Dimensions())
	if err != nil {
		logger.Info("no usable store on disk, building index",
			zap.String("directory", cfg.Ingest.Directory),
			zap.Error(err))
		store, err = components.Builder.BuildDirectory(context.Background(), cfg.Ingest.Directory)
		if err != nil {
			logger.Fatal("Failed to build index", zap.Error(err))
		}
		if err := store.Save(cfg.Store.BasePath); err != nil {
			logger.Warn("failed to persist store", zap.Error(err))
		}
	}
	components.Retriever.Swap(store)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watch *watcher.Watcher
	if cfg.Watch.Enabled {
		rebuild := func() {
			fresh, buildErr := components.Builder.Rebuild(context.Background(), cfg.Ingest.Directory, components.Retriever.Store())
			if buildErr != nil {
				logger.Error("rebuild failed", zap.Error(buildErr))
				return
			}
			if saveErr := fresh.Save(cfg.Store.BasePath); saveErr != nil {
				logger.Warn("failed to persist rebuilt store", zap.Error(saveErr))
			}
			components.Retriever.Swap(fresh)
		}
		watch = watcher.New(cfg.Ingest.Directory, time.Duration(cfg.Watch.DebounceMS)*time.Millisecond, rebuild, logger)
		if err := watch.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watch.Stop()
	}

	srv := server.NewServer(components.Retriever, components.Answerer, components.Registry, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "document directory (default from config)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	directory := cfg.Ingest.Directory
	if *dir != "" {
		directory = *dir
	}
	store, err := components.Builder.BuildDirectory(context.Background(), directory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	if err := store.Save(cfg.Store.BasePath); err != nil {
		fmt.Fprintf(os.Stderr, "Save failed: %v\n", err)
		os.Exit(1)
	}
	stats := store.Stats()
	fmt.Printf("Indexed %d chunks (dim %d, %s) to %s\n",
		stats.NumVectors, stats.EmbeddingDim, stats.Metric, cfg.Store.BasePath)
}

// buildQueryText joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseOutputFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", s)
		os.Exit(1)
		return cli.OutputText
	}
}

func runRetrieve() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the store directly)")
	k := fs.Int("k", 0, "number of results (default from config)")
	minScore := fs.Float64("min-score", 0, "minimum similarity score")
	variations := fs.Int("variations", -1, "number of query variations to fuse over (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	queryStr := buildQueryText(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: kotaeru retrieve [flags] <query>")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)

	req := models.RetrieveRequest{
		Query:    queryStr,
		K:        *k,
		MinScore: *minScore,
	}
	if *variations > 0 {
		req.NumVariations = *variations
	} else if *variations == 0 {
		req.NumVariations = -1 // explicit zero disables rewriting
	}

	if *serverURL != "" {
		resp, err := retrieveViaHTTP(*serverURL, &req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteRetrieveResponse(os.Stdout, resp, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct mode: load the store from disk and query it in-process.
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	store, err := vectorstore.Load(cfg.Store.BasePath, components.Embedder.Dimensions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load store (run \"kotaeru build\" first): %v\n", err)
		os.Exit(1)
	}
	components.Retriever.Swap(store)

	if err := cfg.Retrieval.Normalize(&req); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	start := time.Now()
	fused, err := components.Retriever.RetrieveFused(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
		os.Exit(1)
	}
	resp := &models.RetrieveResponse{
		Results:   fused.Results,
		Total:     len(fused.Results),
		Variants:  fused.Variants,
		Degraded:  fused.Degraded,
		QueryTime: time.Since(start).Milliseconds(),
		Query:     req.Query,
	}
	if err := cli.WriteRetrieveResponse(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runQuery() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	k := fs.Int("k", 0, "number of chunks to ground the answer on")
	minScore := fs.Float64("min-score", 0, "minimum similarity score")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	queryStr := buildQueryText(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: kotaeru query [flags] <question>")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)

	req := models.QueryRequest{Query: queryStr, K: *k, MinScore: *minScore}
	resp, err := queryViaHTTP(*serverURL, &req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryResponse(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func retrieveViaHTTP(serverURL string, req *models.RetrieveRequest) (*models.RetrieveResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/retrieve", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.RetrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func queryViaHTTP(serverURL string, req *models.QueryRequest) (*models.QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	for _, key := range []string{"documents", "chunks", "vectors", "embedding_dim", "metric", "llm_enabled", "disk_usage_bytes"} {
		if v, ok := status[key]; ok {
			fmt.Printf("%-18s %v\n", key+":", v)
		}
	}
}

// Components holds initialized services.
type Components struct {
	Registry  storage.Registry
	Embedder  embedding.Embedder
	Builder   *ingest.Builder
	Retriever *retrieval.Retriever
	Answerer  server.Answerer
}

func (c *Components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	registry, err := storage.NewSQLiteRegistry(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initialize document registry: %w", err)
	}

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		_ = registry.Close()
		return nil, err
	}

	metric, err := vectorstore.ParseMetric(cfg.Store.Metric)
	if err != nil {
		_ = registry.Close()
		return nil, err
	}

	splitter := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	builder := ingest.NewBuilder(embedder, registry, splitter, metric, logger)

	var rewriter retrieval.Rewriter
	var answerer server.Answerer
	if cfg.LLM.Model != "" {
		client := llm.New(cfg.LLM.APIKey(), cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
		rewriter = rewrite.New(client, logger)
		answerer = client
	} else {
		logger.Info("no LLM model configured, query rewriting and answers disabled")
	}

	retriever := retrieval.New(nil, embedder, rewriter, logger)

	return &Components{
		Registry:  registry,
		Embedder:  embedder,
		Builder:   builder,
		Retriever: retriever,
		Answerer:  answerer,
	}, nil
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "onnx":
		embedder, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to mock embeddings", zap.Error(err))
			return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
		}
		return embedder, nil
	case "openai":
		return embedding.NewAPIEmbedder(
			cfg.Embedding.APIKey(),
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			cfg.Embedding.CacheSize,
		), nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func printUsage() {
	fmt.Println(`kotaeru - Local RAG engine with multi-query retrieval

Usage:
  kotaeru server [flags]             Start the HTTP server
  kotaeru build [flags]              Build the vector index from documents
  kotaeru retrieve [flags] <query>   Retrieve relevant chunks
  kotaeru query [flags] <question>   Ask a question (needs an LLM configured)
  kotaeru status [flags]             Show index status
  kotaeru version                    Show version
  kotaeru help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotaeru/config.yaml)
  --debug            Enable debug logging

Build Flags:
  --config string    Config file path
  --dir string       Document directory (default from config)

Retrieve Flags:
  --server string    Server URL (default: http://localhost:8000). Use --server "" to load the store directly.
  --k int            Number of results
  --min-score float  Minimum similarity score
  --variations int   Query variations to fuse over (0 disables rewriting)
  --output string    Output format: text or json

Query Flags:
  --server string    Server URL (default: http://localhost:8000)
  --k int            Number of chunks to ground the answer on
  --min-score float  Minimum similarity score
  --output string    Output format: text or json

Examples:
  kotaeru build --dir ./documents
  kotaeru server
  kotaeru retrieve "how do I rotate the API keys"
  kotaeru retrieve --k 5 --output json "deployment checklist"
  kotaeru query "what does the backup policy say about retention?"
  kotaeru status`)
}
