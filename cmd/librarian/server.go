package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/librarian/internal/api"
	"github.com/kalambet/librarian/internal/catalog"
	"github.com/kalambet/librarian/internal/composer"
	"github.com/kalambet/librarian/internal/config"
	"github.com/kalambet/librarian/internal/engine"
	"github.com/kalambet/librarian/internal/filter"
	"github.com/kalambet/librarian/internal/ingest"
	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/media"
	"github.com/kalambet/librarian/internal/pipeline"
	"github.com/kalambet/librarian/internal/proxy"
	"github.com/kalambet/librarian/internal/retrieval"
	"github.com/kalambet/librarian/internal/storage"
	"github.com/kalambet/librarian/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Index the catalog and start the HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load the catalog into storage and embed it",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runIndex(force)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
	indexCmd.Flags().Bool("force", false, "re-embed every book even if vectors exist")
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// app holds the long-lived collaborators shared by serve and index.
type app struct {
	cfg       config.Config
	store     *storage.Store
	catalog   *catalog.Catalog
	engine    *engine.OllamaEngine
	embedder  *retrieval.Embedder
	vectors   *retrieval.SQLiteStore
	retriever *retrieval.Retriever
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	eng := engine.NewOllamaEngine(cfg.Ollama.BaseURL)
	models := []string{cfg.Ollama.EmbedModel}
	if cfg.LLM.Provider == config.ProviderOllama {
		models = append(models, cfg.Ollama.ChatModel)
	}
	if err := engine.EnsureReady(ctx, eng, os.Stderr, models...); err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	embedder := retrieval.NewEmbedder(eng, cfg.Ollama.EmbedModel)
	vectors := retrieval.NewSQLiteStore(store.DB())
	return &app{
		cfg:       cfg,
		store:     store,
		catalog:   cat,
		engine:    eng,
		embedder:  embedder,
		vectors:   vectors,
		retriever: retrieval.NewRetriever(embedder, vectors),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

// index seeds the catalog and embeds every queued book before returning.
func (a *app) index(ctx context.Context, worker *ingest.Worker, force bool) (int, error) {
	queued, err := ingest.Seed(ctx, a.store, a.catalog, a.vectors, force)
	if err != nil {
		return 0, err
	}
	if queued > 0 {
		slog.Info("indexing catalog", "books", queued)
	}
	n, err := worker.Drain(ctx)
	if err != nil {
		return n, fmt.Errorf("indexing catalog: %w", err)
	}
	return n, nil
}

func (a *app) newWorker() *ingest.Worker {
	return ingest.NewWorker(a.store, a.embedder, a.vectors, 0, 0)
}

// chatModel returns the completer for the configured provider and the model
// id to request from it.
func (a *app) chatModel(proxyClient *proxy.Client) (llm.Completer, string) {
	if a.cfg.LLM.Provider == config.ProviderOllama {
		return a.engine, a.cfg.Ollama.ChatModel
	}
	return proxyClient, a.cfg.Proxy.ChatModel
}

func runIndex(force bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	printStep("Indexing %d catalog books...", a.catalog.Len())
	n, err := a.index(ctx, a.newWorker(), force)
	if err != nil {
		return err
	}
	count, err := a.vectors.Count(ctx)
	if err != nil {
		return err
	}
	printSuccess("Processed %d jobs, %d vectors stored", n, count)
	return nil
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "librarian version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	worker := a.newWorker()
	if _, err := a.index(ctx, worker, false); err != nil {
		return err
	}
	go worker.Run(ctx)

	tool, err := tools.NewDetailTool(a.catalog)
	if err != nil {
		return fmt.Errorf("building detail tool: %w", err)
	}
	comp := composer.New(cfg.Recommend.Language, tool.Name())
	words := filter.New(filter.ParseWords(cfg.Recommend.BlockedWords))

	var proxyClient *proxy.Client
	if cfg.Proxy.APIKey != "" {
		proxyClient = proxy.NewClient(cfg.Proxy.APIKey, cfg.Proxy.BaseURL, cfg.Proxy.ChatModel)
	}
	model, modelID := a.chatModel(proxyClient)
	recommender, err := pipeline.NewRecommender(words, a.retriever, model, tool, comp, pipeline.Options{
		Model:          modelID,
		DefaultTopK:    cfg.Recommend.TopK,
		DefaultNumRecs: cfg.Recommend.NumRecs,
	})
	if err != nil {
		return fmt.Errorf("building recommender: %w", err)
	}
	slog.Info("recommender ready", "provider", cfg.LLM.Provider, "model", modelID)

	deps := api.Deps{
		Recommender: recommender,
		Search:      a.retriever,
		Books:       a.store,
		Catalog:     a.catalog,
		Token:       cfg.Server.APIToken,
		Defaults: api.Defaults{
			TopK:           cfg.Recommend.TopK,
			NumRecs:        cfg.Recommend.NumRecs,
			LanguageFilter: cfg.Recommend.LanguageFilter,
		},
	}
	switch {
	case !cfg.Media.Enabled:
		slog.Info("media generation disabled")
	case proxyClient == nil:
		slog.Warn("media generation needs an OpenAI API key; /tts and /image are unavailable")
	default:
		deps.Media = media.NewRenderer(proxyClient, media.Options{
			OutputDir:  cfg.Media.OutputDir,
			TTSModel:   cfg.Media.TTSModel,
			Voice:      cfg.Media.Voice,
			ImageModel: cfg.Media.ImageModel,
		})
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "librarian listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
