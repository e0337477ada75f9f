package api

import "net/http"

type TTSRequest struct {
	Text     string `json:"text" validate:"required"`
	Filename string `json:"filename"`
}

type ImageRequest struct {
	Title    string `json:"title" validate:"required"`
	Themes   string `json:"themes"`
	Filename string `json:"filename"`
}

func handleTTS(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Media == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "media generation is not configured")
			return
		}
		req := TTSRequest{Filename: "recommendation.wav"}
		if !decodeBody(w, r, &req) {
			return
		}

		path, err := deps.Media.Speech(r.Context(), req.Text, req.Filename)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "speech synthesis failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"audio_path": path})
	}
}

func handleImage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Media == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "media generation is not configured")
			return
		}
		req := ImageRequest{Filename: "cover.png"}
		if !decodeBody(w, r, &req) {
			return
		}

		path, err := deps.Media.Cover(r.Context(), req.Title, req.Themes, req.Filename)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "image generation failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"image_path": path})
	}
}
