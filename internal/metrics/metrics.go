package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringer_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ringer_live_sessions_active",
		Help: "Number of attached live-update sessions",
	})

	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_messages_sent_total",
		Help: "Messages persisted via SEND_MESSAGE",
	})

	EventsBroadcastTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringer_events_broadcast_total",
		Help: "Event frames delivered to live sessions",
	}, []string{"event"})

	BroadcastFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_broadcast_failures_total",
		Help: "Event sends that failed and detached the handle",
	})

	PushQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_push_queued_total",
		Help: "Push notifications accepted onto the dispatch queue",
	})

	PushDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_push_dropped_total",
		Help: "Push notifications dropped because the queue was full",
	})

	PushDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_push_delivered_total",
		Help: "Push batches posted to the gateway",
	})

	DestructSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_destruct_sweeps_total",
		Help: "Completed destruct scheduler ticks",
	})

	MessagesDestructedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringer_messages_destructed_total",
		Help: "Self-destructing messages swept",
	})
)
