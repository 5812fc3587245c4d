package handlers

import (
	"context"
	"net/http"

	"github.com/ringer-im/server/internal/domain"
	"github.com/ringer-im/server/internal/live"
	"github.com/ringer-im/server/internal/push"
)

type RequestsStore interface {
	CreateRequest(ctx context.Context, sender, recipient string, message *string) (*domain.FriendRequest, error)
	RequestsFor(ctx context.Context, recipient string) ([]domain.FriendRequest, error)
	RequestsFrom(ctx context.Context, sender string) ([]domain.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, actor string) (sender, conversationID string, err error)
	DenyRequest(ctx context.Context, requestID, actor string) error
}

type Broadcaster interface {
	Broadcast(targets []string, event live.Event)
	IsPresent(identity string) bool
}

type Pusher interface {
	Enqueue(n push.Notification)
}

type Requests struct {
	store    RequestsStore
	registry Broadcaster
	pusher   Pusher
}

func NewRequests(store RequestsStore, registry Broadcaster, pusher Pusher) *Requests {
	return &Requests{store: store, registry: registry, pusher: pusher}
}

func (h *Requests) Incoming(w http.ResponseWriter, r *http.Request) {
	requests, err := h.store.RequestsFor(r.Context(), Identity(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if requests == nil {
		requests = []domain.FriendRequest{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Requests) Outgoing(w http.ResponseWriter, r *http.Request) {
	requests, err := h.store.RequestsFrom(r.Context(), Identity(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if requests == nil {
		requests = []domain.FriendRequest{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

type addFriendBody struct {
	Recipient string  `json:"recipient"`
	Message   *string `json:"message"`
}

// AddFriend creates a pending request from the caller to the recipient
// and nudges an offline recipient with a push notification.
func (h *Requests) AddFriend(w http.ResponseWriter, r *http.Request) {
	identity := Identity(r.Context())

	var body addFriendBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Recipient == "" {
		respondError(w, http.StatusBadRequest, "recipient is required")
		return
	}
	if body.Recipient == identity {
		respondError(w, http.StatusBadRequest, "cannot befriend yourself")
		return
	}

	req, err := h.store.CreateRequest(r.Context(), identity, body.Recipient, body.Message)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if !h.registry.IsPresent(body.Recipient) {
		pushBody := "sent you a friend request"
		if body.Message != nil && *body.Message != "" {
			pushBody = *body.Message
		}
		h.pusher.Enqueue(push.Notification{
			Identity: body.Recipient,
			Title:    identity,
			Body:     pushBody,
		})
	}

	respondJSON(w, http.StatusOK, map[string]string{"requestId": req.RequestID})
}

type requestActionBody struct {
	RequestID string `json:"request_id"`
}

// Accept turns the request into a friendship and tells the original
// sender, live when connected, by push otherwise.
func (h *Requests) Accept(w http.ResponseWriter, r *http.Request) {
	identity := Identity(r.Context())

	var body requestActionBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.RequestID == "" {
		respondError(w, http.StatusBadRequest, "request_id is required")
		return
	}

	sender, conversationID, err := h.store.AcceptRequest(r.Context(), body.RequestID, identity)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if h.registry.IsPresent(sender) {
		h.registry.Broadcast([]string{sender}, live.NewEvent(live.EventFriendRequestAccept,
			live.FriendRequestAcceptData{User: identity, ConversationID: conversationID}))
	} else {
		h.pusher.Enqueue(push.Notification{
			Identity: sender,
			Title:    identity,
			Body:     "accepted your friend request",
		})
	}

	respondJSON(w, http.StatusOK, map[string]string{"conversationId": conversationID})
}

func (h *Requests) Deny(w http.ResponseWriter, r *http.Request) {
	var body requestActionBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.RequestID == "" {
		respondError(w, http.StatusBadRequest, "request_id is required")
		return
	}

	if err := h.store.DenyRequest(r.Context(), body.RequestID, Identity(r.Context())); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}
