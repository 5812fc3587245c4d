package live

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ringer-im/server/internal/domain"
	"github.com/ringer-im/server/internal/metrics"
)

// Registry is the process-wide presence table: identity to the set of
// attached handles. An identity with two devices has two entries.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[*Handle]struct{}

	// notify fires on presence transitions, outside any registry lock,
	// so it may reach into the store.
	notify func(identity string, online bool)
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[*Handle]struct{})}
}

// SetPresenceNotifier installs the transition callback. Set once during
// wiring, before any session attaches.
func (r *Registry) SetPresenceNotifier(fn func(identity string, online bool)) {
	r.notify = fn
}

// Attach registers a handle. Returns true when the identity went from
// absent to present.
func (r *Registry) Attach(h *Handle) bool {
	r.mu.Lock()
	handles, ok := r.sessions[h.Identity()]
	if !ok {
		handles = make(map[*Handle]struct{})
		r.sessions[h.Identity()] = handles
	}
	handles[h] = struct{}{}
	becamePresent := len(handles) == 1
	r.mu.Unlock()

	metrics.SessionsActive.Inc()
	slog.Info("live: session attached", "user", h.Identity(), "first", becamePresent)

	if becamePresent && r.notify != nil {
		r.notify(h.Identity(), true)
	}
	return becamePresent
}

// Detach removes a handle. Returns true when this was the identity's
// last session. Safe to call more than once per handle.
func (r *Registry) Detach(h *Handle) bool {
	r.mu.Lock()
	handles, ok := r.sessions[h.Identity()]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if _, ok := handles[h]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(handles, h)
	becameAbsent := len(handles) == 0
	if becameAbsent {
		delete(r.sessions, h.Identity())
	}
	r.mu.Unlock()

	metrics.SessionsActive.Dec()
	slog.Info("live: session detached", "user", h.Identity(), "last", becameAbsent)

	if becameAbsent && r.notify != nil {
		r.notify(h.Identity(), false)
	}
	return becameAbsent
}

func (r *Registry) IsPresent(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[identity]) > 0
}

// PresenceOf reports online state for each identity, in input order.
func (r *Registry) PresenceOf(identities []string) []domain.Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	presence := make([]domain.Presence, 0, len(identities))
	for _, identity := range identities {
		presence = append(presence, domain.Presence{
			Identity: identity,
			Online:   len(r.sessions[identity]) > 0,
		})
	}
	return presence
}

// Broadcast delivers an event to every handle of every target identity,
// once per handle. Sends happen outside the lock; a failed send detaches
// and closes the handle.
func (r *Registry) Broadcast(targets []string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("live: encode event", "event", event.EventType, "error", err)
		return
	}

	r.mu.RLock()
	var recipients []*Handle
	seen := make(map[*Handle]struct{})
	for _, target := range targets {
		for h := range r.sessions[target] {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			recipients = append(recipients, h)
		}
	}
	r.mu.RUnlock()

	for _, h := range recipients {
		if err := h.Send(payload); err != nil {
			slog.Warn("live: broadcast send failed, detaching",
				"user", h.Identity(), "event", event.EventType, "error", err)
			metrics.BroadcastFailuresTotal.Inc()
			r.Detach(h)
			h.Close()
			continue
		}
		metrics.EventsBroadcastTotal.WithLabelValues(event.EventType).Inc()
	}
}
