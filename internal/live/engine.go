package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ringer-im/server/internal/auth"
	"github.com/ringer-im/server/internal/domain"
	"github.com/ringer-im/server/internal/metrics"
	"github.com/ringer-im/server/internal/push"
)

// staleFrameAge is the legacy clock-skew guard: frames stamped more than
// this far in the past are dropped without a response.
const staleFrameAge = 5 * time.Second

// opTimeout bounds store and auth calls made on behalf of one frame.
const opTimeout = 10 * time.Second

// Gateway is the slice of the store the engine consumes.
type Gateway interface {
	CreateUserIfMissing(ctx context.Context, username string) error
	Members(ctx context.Context, conversationID string) ([]string, error)
	InsertMessage(ctx context.Context, conversationID, author, content string, messageType, gifURL *string, selfDestruct *int) (*domain.Message, error)
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)
	MarkViewedSingle(ctx context.Context, messageID string) error
	FriendIdentities(ctx context.Context, username string) ([]string, error)
	UnreadCountTotal(ctx context.Context, username string) (int, error)
}

type Pusher interface {
	Enqueue(n push.Notification)
}

type Verifier interface {
	Verify(ctx context.Context, username, token string) auth.Status
}

type handlerFunc func(ctx context.Context, h *Handle, req Request)

// Engine runs the per-session protocol loop: authenticate on open,
// attach to the registry, dispatch frames until the peer goes away.
type Engine struct {
	registry *Registry
	gateway  Gateway
	pusher   Pusher
	verifier Verifier

	upgrader websocket.Upgrader
	handlers map[string]handlerFunc

	// now is swappable for clock-skew tests.
	now func() time.Time
}

func NewEngine(registry *Registry, gateway Gateway, pusher Pusher, verifier Verifier, allowedOrigins []string) *Engine {
	e := &Engine{
		registry: registry,
		gateway:  gateway,
		pusher:   pusher,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		now: time.Now,
	}
	e.handlers = map[string]handlerFunc{
		RequestSendMessage: e.handleSendMessage,
		RequestViewMessage: e.handleViewMessage,
		RequestUserTyping:  e.handleUserTyping,
	}
	registry.SetPresenceNotifier(e.notifyPresence)
	return e
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP upgrades the connection, then verifies the credential
// headers on the open socket so the client always sees a close code
// rather than a failed upgrade.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("live: upgrade failed", "error", err)
		return
	}

	username := r.Header.Get("username")
	token := r.Header.Get("token")

	h := NewHandle(username, conn)

	verifyCtx, cancel := context.WithTimeout(r.Context(), opTimeout)
	status := e.verifier.Verify(verifyCtx, username, token)
	cancel()

	switch status {
	case auth.StatusValid:
	case auth.StatusTransportError:
		slog.Warn("live: auth unreachable", "user", username)
		h.CloseWithCode(websocket.CloseInternalServerErr, "authentication unavailable")
		return
	default:
		slog.Info("live: rejected session", "user", username, "status", status.String())
		h.CloseWithCode(websocket.ClosePolicyViolation, "authentication failed")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if err := e.gateway.CreateUserIfMissing(ctx, username); err != nil {
		slog.Error("live: ensure user row", "user", username, "error", err)
	}

	e.registry.Attach(h)
	defer func() {
		e.registry.Detach(h)
		h.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("live: read failed", "user", username, "error", err)
			}
			return
		}
		e.handleFrame(ctx, h, data)
	}
}

func (e *Engine) handleFrame(ctx context.Context, h *Handle, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		e.respond(h, "unknown", http.StatusBadRequest, "malformed frame")
		return
	}
	if req.RequestID == "" {
		req.RequestID = "unknown"
	}

	// Stale client clocks replay old frames on reconnect; drop them
	// without a response.
	if req.SendTime != nil && e.now().Sub(*req.SendTime) > staleFrameAge {
		slog.Debug("live: dropped stale frame", "user", h.Identity(), "type", req.RequestType)
		return
	}

	handler, ok := e.handlers[req.RequestType]
	if !ok {
		e.respond(h, req.RequestID, http.StatusBadRequest, "unknown request type")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	handler(opCtx, h, req)
}

func (e *Engine) respond(h *Handle, requestID string, statusCode int, message string) {
	if err := h.SendJSON(NewResponse(requestID, statusCode, message)); err != nil {
		slog.Warn("live: response send failed", "user", h.Identity(), "error", err)
	}
}

// membersFor resolves the conversation and checks the caller's
// membership, answering the request itself on failure.
func (e *Engine) membersFor(ctx context.Context, h *Handle, req Request, conversationID string) ([]string, bool) {
	members, err := e.gateway.Members(ctx, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		e.respond(h, req.RequestID, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	if err != nil {
		slog.Error("live: load members", "conversation_id", conversationID, "error", err)
		e.respond(h, req.RequestID, http.StatusInternalServerError, "storage failure")
		return nil, false
	}
	for _, m := range members {
		if m == h.Identity() {
			return members, true
		}
	}
	e.respond(h, req.RequestID, http.StatusForbidden, "not a conversation member")
	return nil, false
}

func (e *Engine) handleSendMessage(ctx context.Context, h *Handle, req Request) {
	var body sendMessageBody
	if err := json.Unmarshal(req.Body, &body); err != nil ||
		body.ConversationID == nil || body.Text == nil {
		e.respond(h, req.RequestID, http.StatusBadRequest, "conversationId and text are required")
		return
	}
	if body.MessageType != nil && *body.MessageType != domain.MessageTypeGIF {
		e.respond(h, req.RequestID, http.StatusBadRequest, "unsupported messageType")
		return
	}

	members, ok := e.membersFor(ctx, h, req, *body.ConversationID)
	if !ok {
		return
	}

	msg, err := e.gateway.InsertMessage(ctx, *body.ConversationID, h.Identity(),
		*body.Text, body.MessageType, body.GifURL, body.SelfDestructMinutes)
	if err != nil {
		slog.Error("live: insert message", "conversation_id", *body.ConversationID, "error", err)
		e.respond(h, req.RequestID, http.StatusInternalServerError, "storage failure")
		return
	}
	metrics.MessagesSentTotal.Inc()

	e.respond(h, req.RequestID, http.StatusOK, "")

	recipients := make([]string, 0, len(members)-1)
	for _, m := range members {
		if m != h.Identity() {
			recipients = append(recipients, m)
		}
	}

	e.registry.Broadcast(recipients, NewEvent(EventNewMessage, NewMessageData{
		ConversationID: msg.ConversationID,
		Message: MessagePayload{
			ID:       msg.MessageID,
			Author:   msg.Author,
			Text:     msg.Content,
			Type:     msg.MessageType,
			GifURL:   msg.GifURL,
			SendTime: msg.SendTime,
		},
	}))

	// Offline recipients get a push; computed off the response path.
	go e.pushOffline(recipients, msg)
}

func (e *Engine) pushOffline(recipients []string, msg *domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	for _, recipient := range recipients {
		if e.registry.IsPresent(recipient) {
			continue
		}
		badge, err := e.gateway.UnreadCountTotal(ctx, recipient)
		if err != nil {
			slog.Warn("live: badge count failed", "user", recipient, "error", err)
			e.pusher.Enqueue(push.Notification{
				Identity: recipient,
				Title:    msg.Author,
				Body:     msg.Content,
				Data:     map[string]string{"conversationId": msg.ConversationID},
			})
			continue
		}
		e.pusher.Enqueue(push.Notification{
			Identity: recipient,
			Title:    msg.Author,
			Body:     msg.Content,
			Data:     map[string]string{"conversationId": msg.ConversationID},
			Badge:    &badge,
		})
	}
}

func (e *Engine) handleViewMessage(ctx context.Context, h *Handle, req Request) {
	var body viewMessageBody
	if err := json.Unmarshal(req.Body, &body); err != nil ||
		body.ConversationID == nil || body.MessageID == nil {
		e.respond(h, req.RequestID, http.StatusBadRequest, "conversationId and messageId are required")
		return
	}

	if _, ok := e.membersFor(ctx, h, req, *body.ConversationID); !ok {
		return
	}

	msg, err := e.gateway.GetMessage(ctx, *body.MessageID)
	if errors.Is(err, domain.ErrNotFound) {
		e.respond(h, req.RequestID, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		slog.Error("live: load message", "message_id", *body.MessageID, "error", err)
		e.respond(h, req.RequestID, http.StatusInternalServerError, "storage failure")
		return
	}
	if msg.ConversationID != *body.ConversationID {
		e.respond(h, req.RequestID, http.StatusNotFound, "message not in conversation")
		return
	}
	if msg.Author == h.Identity() {
		e.respond(h, req.RequestID, http.StatusForbidden, "cannot view own message")
		return
	}

	if err := e.gateway.MarkViewedSingle(ctx, msg.MessageID); err != nil {
		slog.Error("live: mark viewed", "message_id", msg.MessageID, "error", err)
		e.respond(h, req.RequestID, http.StatusInternalServerError, "storage failure")
		return
	}
	e.respond(h, req.RequestID, http.StatusOK, "")
}

func (e *Engine) handleUserTyping(ctx context.Context, h *Handle, req Request) {
	var body userTypingBody
	if err := json.Unmarshal(req.Body, &body); err != nil ||
		body.ConversationID == nil || body.IsTyping == nil {
		e.respond(h, req.RequestID, http.StatusBadRequest, "conversationId and isTyping are required")
		return
	}

	members, ok := e.membersFor(ctx, h, req, *body.ConversationID)
	if !ok {
		return
	}

	recipients := make([]string, 0, len(members)-1)
	for _, m := range members {
		if m != h.Identity() {
			recipients = append(recipients, m)
		}
	}
	e.registry.Broadcast(recipients, NewEvent(EventUserTyping, TypingData{
		ConversationID: *body.ConversationID,
		User:           h.Identity(),
		IsTyping:       *body.IsTyping,
	}))
	e.respond(h, req.RequestID, http.StatusOK, "")
}

// notifyPresence fans a presence transition out to the user's friends.
// Invoked by the registry after Attach/Detach, outside its locks.
func (e *Engine) notifyPresence(identity string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	friends, err := e.gateway.FriendIdentities(ctx, identity)
	if err != nil {
		slog.Warn("live: presence fan-out skipped", "user", identity, "error", err)
		return
	}
	if len(friends) == 0 {
		return
	}
	e.registry.Broadcast(friends, NewEvent(EventPresenceChange, domain.Presence{
		Identity: identity,
		Online:   online,
	}))
}
