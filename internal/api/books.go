package api

import (
	"math"
	"net/http"
	"strconv"
)

const (
	defaultBooksLimit = 50
	maxBooksLimit     = 200
)

type BookResponse struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Themes  []string `json:"themes"`
}

func handleListBooks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(w, r, "limit", defaultBooksLimit, 1, maxBooksLimit)
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset", 0, 0, math.MaxInt32)
		if !ok {
			return
		}

		books, err := deps.Books.ListBooks(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing books: %v", err)
			return
		}
		total, err := deps.Books.CountBooks(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting books: %v", err)
			return
		}

		out := make([]BookResponse, len(books))
		for i, b := range books {
			out[i] = BookResponse{ID: b.ID, Title: b.Title, Summary: b.Summary, Themes: b.Themes}
		}
		writeJSON(w, map[string]any{"books": out, "total": total})
	}
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, def, min, max int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s must be an integer between %d and %d", name, min, max)
		return 0, false
	}
	return n, true
}
