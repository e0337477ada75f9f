package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kalambet/librarian/internal/media"
	"github.com/kalambet/librarian/internal/pipeline"
)

// User-facing messages for outcomes without recommendations.
const (
	MessageBlocked   = "Te rog folosește un limbaj adecvat și reîncearcă."
	MessageNoMatches = "Nu am găsit potriviri. Încearcă altă formulare."
)

const maxSearchTopK = 50

type RecommendRequest struct {
	Query              string `json:"query" validate:"required"`
	TopK               int    `json:"top_k" validate:"min=1,max=20"`
	NumRecommendations int    `json:"num_recommendations" validate:"min=1,max=10"`
	LanguageFilter     bool   `json:"language_filter"`
	GenerateImage      bool   `json:"generate_image"`
	TTS                bool   `json:"tts"`
}

type RecommendationItem struct {
	Title           string `json:"title"`
	Rationale       string `json:"rationale"`
	DetailedSummary string `json:"detailed_summary"`
	ImagePath       string `json:"image_path,omitempty"`
	AudioPath       string `json:"audio_path,omitempty"`
}

type RecommendResponse struct {
	Outcome string               `json:"outcome"`
	Items   []RecommendationItem `json:"items"`
}

type SearchHit struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Document string  `json:"document"`
	Score    float32 `json:"score"`
}

func handleRecommend(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := RecommendRequest{
			TopK:               deps.Defaults.TopK,
			NumRecommendations: deps.Defaults.NumRecs,
			LanguageFilter:     deps.Defaults.LanguageFilter,
		}
		if !decodeBody(w, r, &req) {
			return
		}

		out, err := deps.Recommender.Run(r.Context(), pipeline.Request{
			Query:          req.Query,
			TopK:           req.TopK,
			NumRecs:        req.NumRecommendations,
			LanguageFilter: req.LanguageFilter,
		})
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "recommendation failed: %v", err)
			return
		}

		resp := RecommendResponse{Outcome: out.Kind.String(), Items: outcomeItems(out)}
		if out.Kind == pipeline.OutcomeRecommendations && len(out.Drafts) > 0 {
			for i := range resp.Items {
				renderMedia(r.Context(), deps, req, &resp.Items[i])
			}
		}
		writeJSON(w, resp)
	}
}

// outcomeItems converts a pipeline outcome into response items. Outcomes
// without drafts yield a single message item with an empty title.
func outcomeItems(out pipeline.Outcome) []RecommendationItem {
	switch {
	case out.Kind == pipeline.OutcomeBlocked:
		return []RecommendationItem{{Rationale: MessageBlocked}}
	case len(out.Drafts) == 0:
		return []RecommendationItem{{Rationale: MessageNoMatches}}
	}
	items := make([]RecommendationItem, len(out.Drafts))
	for i, d := range out.Drafts {
		items[i] = RecommendationItem{
			Title:           d.Title,
			Rationale:       d.Rationale,
			DetailedSummary: d.DetailedSummary,
		}
	}
	return items
}

// renderMedia attaches the requested cover and narration. Failures are
// logged and leave the path empty.
func renderMedia(ctx context.Context, deps Deps, req RecommendRequest, item *RecommendationItem) {
	if !req.GenerateImage && !req.TTS {
		return
	}
	if deps.Media == nil {
		slog.Warn("media requested but no renderer is configured")
		return
	}

	if req.GenerateImage {
		var themes string
		if deps.Catalog != nil {
			if b, ok := deps.Catalog.Lookup(item.Title); ok {
				themes = strings.Join(b.Themes, ", ")
			}
		}
		path, err := deps.Media.Cover(ctx, item.Title, themes, media.CoverFileName(item.Title))
		if err != nil {
			slog.Warn("cover generation failed", "title", item.Title, "error", err)
		} else {
			item.ImagePath = path
		}
	}

	if req.TTS {
		text := media.SpeechText(item.Title, item.Rationale, item.DetailedSummary)
		path, err := deps.Media.Speech(ctx, text, media.SpeechFileName(item.Title))
		if err != nil {
			slog.Warn("speech synthesis failed", "title", item.Title, "error", err)
		} else {
			item.AudioPath = path
		}
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if strings.TrimSpace(query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		topK := deps.Defaults.TopK
		if v := r.URL.Query().Get("top_k"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxSearchTopK {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "top_k must be an integer between 1 and %d", maxSearchTopK)
				return
			}
			topK = n
		}

		hits, err := deps.Search.Retrieve(r.Context(), query, topK)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
			return
		}

		out := make([]SearchHit, len(hits))
		for i, h := range hits {
			out[i] = SearchHit{ID: h.ID, Title: h.Title, Document: h.Document, Score: h.Score}
		}
		writeJSON(w, map[string]any{"hits": out})
	}
}
