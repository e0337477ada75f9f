// Package api exposes the recommender over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/librarian/internal/catalog"
	"github.com/kalambet/librarian/internal/pipeline"
	"github.com/kalambet/librarian/internal/retrieval"
	"github.com/kalambet/librarian/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Recommender runs the recommendation pipeline.
type Recommender interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)
}

// Searcher returns ranked catalog hits.
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Hit, error)
}

// MediaRenderer writes generated media and returns file paths.
type MediaRenderer interface {
	Speech(ctx context.Context, text, filename string) (string, error)
	Cover(ctx context.Context, title, themes, filename string) (string, error)
}

// BookLister pages through stored books.
type BookLister interface {
	ListBooks(ctx context.Context, limit, offset int) ([]storage.Book, error)
	CountBooks(ctx context.Context) (int, error)
}

// Catalog resolves titles to catalog entries.
type Catalog interface {
	Lookup(title string) (catalog.Book, bool)
	Detail(title string) string
}

// Defaults are applied to recommendation requests that omit a field.
type Defaults struct {
	TopK           int
	NumRecs        int
	LanguageFilter bool
}

// Deps holds the collaborators of the HTTP and MCP layers.
type Deps struct {
	Recommender Recommender
	Search      Searcher
	Books       BookLister
	Catalog     Catalog
	Media       MediaRenderer // optional; nil disables /tts, /image and media in /recommend
	Token       string        // optional; empty disables bearer auth
	Defaults    Defaults
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Defaults.TopK <= 0 {
		deps.Defaults.TopK = 4
	}
	if deps.Defaults.NumRecs <= 0 {
		deps.Defaults.NumRecs = 1
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Get("/rag/search", handleSearch(deps))
		r.Post("/recommend", handleRecommend(deps))
		r.Post("/tts", handleTTS(deps))
		r.Post("/image", handleImage(deps))
		r.Get("/books", handleListBooks(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// decodeBody reads a size-limited JSON body into dst and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	if err := validateStruct(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
