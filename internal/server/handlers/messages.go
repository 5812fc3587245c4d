package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ringer-im/server/internal/domain"
)

type MessagesStore interface {
	Members(ctx context.Context, conversationID string) ([]string, error)
	MessagesPage(ctx context.Context, conversationID string, offset int, viewer string) ([]domain.Message, int, error)
	MessagesAfter(ctx context.Context, conversationID string, after time.Time) ([]domain.Message, error)
	MarkViewedBulk(ctx context.Context, conversationID, author string, offset int) error
}

type Messages struct {
	store MessagesStore
}

func NewMessages(store MessagesStore) *Messages {
	return &Messages{store: store}
}

// Load returns one page of history, oldest first within the page, and
// marks the counterpart-authored messages on that page as viewed.
func (h *Messages) Load(w http.ResponseWriter, r *http.Request) {
	identity := Identity(r.Context())
	conversationID := chi.URLParam(r, "conversationId")

	// raw row offset, handed to the store unchanged
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	members, err := h.store.Members(r.Context(), conversationID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	var counterpart string
	switch identity {
	case members[0]:
		counterpart = members[1]
	case members[1]:
		counterpart = members[0]
	default:
		respondError(w, http.StatusForbidden, "not a conversation member")
		return
	}

	messages, unread, err := h.store.MessagesPage(r.Context(), conversationID, offset, identity)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if err := h.store.MarkViewedBulk(r.Context(), conversationID, counterpart, offset); err != nil {
		respondDomainError(w, err)
		return
	}

	// The store hands pages back newest first; clients render oldest
	// first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"messages":    messages,
		"unreadCount": unread,
	})
}

// New returns messages sent after the given timestamp, oldest first.
// Clients use it to catch up after returning to the foreground.
func (h *Messages) New(w http.ResponseWriter, r *http.Request) {
	identity := Identity(r.Context())
	conversationID := chi.URLParam(r, "conversationId")

	since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
		return
	}

	members, err := h.store.Members(r.Context(), conversationID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if identity != members[0] && identity != members[1] {
		respondError(w, http.StatusForbidden, "not a conversation member")
		return
	}

	messages, err := h.store.MessagesAfter(r.Context(), conversationID, since)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
