package handlers

import (
	"context"
	"net/http"

	"github.com/ringer-im/server/internal/domain"
)

type FriendsStore interface {
	CreateUserIfMissing(ctx context.Context, username string) error
	GetFriends(ctx context.Context, username string) ([]domain.Friend, error)
}

type PresenceSource interface {
	PresenceOf(identities []string) []domain.Presence
	IsPresent(identity string) bool
}

type Friends struct {
	store    FriendsStore
	presence PresenceSource
}

func NewFriends(store FriendsStore, presence PresenceSource) *Friends {
	return &Friends{store: store, presence: presence}
}

type friendItem struct {
	domain.Friend
	Online bool `json:"online"`
}

// GetFriends returns the caller's friendship list with live presence
// merged in. The user row is created lazily on first call.
func (h *Friends) GetFriends(w http.ResponseWriter, r *http.Request) {
	identity := Identity(r.Context())

	if err := h.store.CreateUserIfMissing(r.Context(), identity); err != nil {
		respondDomainError(w, err)
		return
	}

	friends, err := h.store.GetFriends(r.Context(), identity)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	identities := make([]string, 0, len(friends))
	for _, f := range friends {
		identities = append(identities, f.Username)
	}
	online := make(map[string]bool, len(identities))
	for _, p := range h.presence.PresenceOf(identities) {
		online[p.Identity] = p.Online
	}

	items := make([]friendItem, 0, len(friends))
	for _, f := range friends {
		items = append(items, friendItem{Friend: f, Online: online[f.Username]})
	}
	respondJSON(w, http.StatusOK, map[string]any{"friends": items})
}
