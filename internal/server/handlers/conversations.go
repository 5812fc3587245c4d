package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ringer-im/server/internal/live"
)

type ConversationsStore interface {
	RemoveConversation(ctx context.Context, conversationID, actor string) (other string, err error)
}

type Conversations struct {
	store    ConversationsStore
	registry Broadcaster
}

func NewConversations(store ConversationsStore, registry Broadcaster) *Conversations {
	return &Conversations{store: store, registry: registry}
}

// Remove cascades the conversation away and tells the other member so
// open clients can drop it immediately.
func (h *Conversations) Remove(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")

	other, err := h.store.RemoveConversation(r.Context(), conversationID, Identity(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.registry.Broadcast([]string{other}, live.NewEvent(live.EventRemoveConversation,
		live.RemoveConversationData{ConversationID: conversationID}))

	respondJSON(w, http.StatusOK, nil)
}
