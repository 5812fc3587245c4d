// Package push delivers mobile push notifications through an
// Expo-compatible gateway, fire-and-forget.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ringer-im/server/internal/metrics"
	"github.com/ringer-im/server/shared/httpclient"
)

const queueSize = 256

type Notification struct {
	Identity string
	Title    string
	Body     string
	Data     map[string]string
	Badge    *int
}

// TokenSource resolves an identity to its registered device tokens.
type TokenSource interface {
	PushTokens(ctx context.Context, identity string) ([]string, error)
}

// Dispatcher owns a bounded queue and a single delivery worker. Enqueue
// never blocks the caller.
type Dispatcher struct {
	gatewayURL string
	tokens     TokenSource
	client     *http.Client

	queue chan Notification
	done  chan struct{}
}

func NewDispatcher(gatewayURL string, tokens TokenSource) *Dispatcher {
	d := &Dispatcher{
		gatewayURL: gatewayURL,
		tokens:     tokens,
		client:     httpclient.NewShort(),
		queue:      make(chan Notification, queueSize),
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue hands a notification to the worker. When the queue is full the
// notification is dropped and logged; delivery is best-effort.
func (d *Dispatcher) Enqueue(n Notification) {
	select {
	case d.queue <- n:
		metrics.PushQueuedTotal.Inc()
	default:
		metrics.PushDroppedTotal.Inc()
		slog.Warn("push: queue full, dropping notification", "user", n.Identity)
	}
}

// Close stops accepting work, drains the queue, and waits for the
// worker to exit.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

// pushMessage is the Expo batch payload shape.
type pushMessage struct {
	To    []string          `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
	Badge *int              `json:"badge,omitempty"`
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), httpclient.TimeoutShort)
	defer cancel()

	tokens, err := d.tokens.PushTokens(ctx, n.Identity)
	if err != nil {
		slog.Warn("push: token lookup failed", "user", n.Identity, "error", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	payload, err := json.Marshal(pushMessage{
		To:    tokens,
		Title: n.Title,
		Body:  n.Body,
		Data:  n.Data,
		Sound: "default",
		Badge: n.Badge,
	})
	if err != nil {
		slog.Error("push: encode payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("push: build request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		slog.Warn("push: gateway unreachable", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("push: gateway rejected batch", "status", resp.StatusCode, "tokens", len(tokens))
		return
	}
	metrics.PushDeliveredTotal.Inc()
	slog.Debug("push: batch delivered", "user", n.Identity, "tokens", len(tokens))
}
