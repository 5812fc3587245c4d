package handlers

import (
	"context"
	"log/slog"
	"net/http"
)

type LinkChecker interface {
	IsSafe(ctx context.Context, rawURL string) (bool, error)
}

type Safety struct {
	checker LinkChecker
}

func NewSafety(checker LinkChecker) *Safety {
	return &Safety{checker: checker}
}

type linkCheckBody struct {
	URL string `json:"url"`
}

// Check looks a URL up against the threat database before the client
// opens it.
func (h *Safety) Check(w http.ResponseWriter, r *http.Request) {
	var body linkCheckBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	safe, err := h.checker.IsSafe(r.Context(), body.URL)
	if err != nil {
		slog.Error("http: link safety check failed", "error", err)
		respondError(w, http.StatusInternalServerError, "link safety check unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"safe": safe})
}
