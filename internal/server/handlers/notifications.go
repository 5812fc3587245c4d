package handlers

import (
	"context"
	"net/http"
)

type PushTokenStore interface {
	AddPushToken(ctx context.Context, username, token string) error
	RemovePushToken(ctx context.Context, token string) error
}

type Notifications struct {
	store PushTokenStore
}

func NewNotifications(store PushTokenStore) *Notifications {
	return &Notifications{store: store}
}

// The mobile client sends the Expo token under this legacy key.
type pushTokenBody struct {
	PushToken string `json:"push-token"`
}

func (h *Notifications) Register(w http.ResponseWriter, r *http.Request) {
	var body pushTokenBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.PushToken == "" {
		respondError(w, http.StatusBadRequest, "push-token is required")
		return
	}

	if err := h.store.AddPushToken(r.Context(), Identity(r.Context()), body.PushToken); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

// Unregister deletes a token without credentials: clients often drop a
// token after logging out, when they can no longer authenticate.
func (h *Notifications) Unregister(w http.ResponseWriter, r *http.Request) {
	var body pushTokenBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.PushToken == "" {
		respondError(w, http.StatusBadRequest, "push-token is required")
		return
	}

	if err := h.store.RemovePushToken(r.Context(), body.PushToken); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}
