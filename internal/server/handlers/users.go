package handlers

import (
	"context"
	"net/http"
)

type UserSearcher interface {
	SearchUsers(ctx context.Context, term string) ([]string, error)
}

type Users struct {
	store UserSearcher
}

func NewUsers(store UserSearcher) *Users {
	return &Users{store: store}
}

// Search finds usernames phonetically or textually similar to the query.
func (h *Users) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("user")
	if term == "" {
		respondError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	users, err := h.store.SearchUsers(r.Context(), term)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}
