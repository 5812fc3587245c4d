// Package destruct sweeps self-destructing messages past their
// deadline and fans out DELETE_MESSAGE before removing them.
package destruct

import (
	"context"
	"log/slog"
	"time"

	"github.com/ringer-im/server/internal/domain"
	"github.com/ringer-im/server/internal/live"
	"github.com/ringer-im/server/internal/metrics"
)

const sweepInterval = 10 * time.Second

type Gateway interface {
	ExpiredMessages(ctx context.Context) ([]domain.ExpiredMessage, error)
	Members(ctx context.Context, conversationID string) ([]string, error)
	DeleteMessages(ctx context.Context, messageIDs []string) error
}

type Broadcaster interface {
	Broadcast(targets []string, event live.Event)
}

type Scheduler struct {
	gateway  Gateway
	registry Broadcaster
	interval time.Duration
}

func NewScheduler(gateway Gateway, registry Broadcaster) *Scheduler {
	return &Scheduler{
		gateway:  gateway,
		registry: registry,
		interval: sweepInterval,
	}
}

// Run sweeps until ctx is cancelled. Errors are logged and the next
// tick retries; a crash between broadcast and delete just re-notifies,
// which clients must treat as idempotent.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("destruct: scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("destruct: scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: notify members of every expired message, then
// delete the batch. Notification strictly precedes deletion.
func (s *Scheduler) Sweep(ctx context.Context) {
	expired, err := s.gateway.ExpiredMessages(ctx)
	if err != nil {
		slog.Error("destruct: list expired", "error", err)
		return
	}
	if len(expired) == 0 {
		metrics.DestructSweepsTotal.Inc()
		return
	}

	ids := make([]string, 0, len(expired))
	for _, msg := range expired {
		ids = append(ids, msg.MessageID)

		members, err := s.gateway.Members(ctx, msg.ConversationID)
		if err != nil {
			slog.Warn("destruct: members lookup failed",
				"conversation_id", msg.ConversationID, "error", err)
			continue
		}
		s.registry.Broadcast(members, live.NewEvent(live.EventDeleteMessage, live.DeleteMessageData{
			ConversationID: msg.ConversationID,
			MessageID:      msg.MessageID,
		}))
	}

	if err := s.gateway.DeleteMessages(ctx, ids); err != nil {
		slog.Error("destruct: delete expired", "error", err)
		return
	}
	metrics.DestructSweepsTotal.Inc()
	metrics.MessagesDestructedTotal.Add(float64(len(ids)))
	slog.Info("destruct: swept messages", "count", len(ids))
}
