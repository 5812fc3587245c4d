package handlers

import (
	"context"
	"log/slog"
	"net/http"
)

type GifSearcher interface {
	Search(ctx context.Context, query string) ([]byte, error)
}

type Gifs struct {
	client GifSearcher
}

func NewGifs(client GifSearcher) *Gifs {
	return &Gifs{client: client}
}

// Search proxies the provider response through untouched; the client
// understands the provider format.
func (h *Gifs) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("search")
	if query == "" {
		respondError(w, http.StatusBadRequest, "search query parameter is required")
		return
	}

	payload, err := h.client.Search(r.Context(), query)
	if err != nil {
		slog.Error("http: gif search failed", "error", err)
		respondError(w, http.StatusInternalServerError, "gif search unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
