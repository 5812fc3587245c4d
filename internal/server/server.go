// Package server wires the HTTP façade: router, middleware, handlers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ringer-im/server/internal/auth"
	"github.com/ringer-im/server/internal/config"
	"github.com/ringer-im/server/internal/destruct"
	"github.com/ringer-im/server/internal/gifs"
	"github.com/ringer-im/server/internal/linksafety"
	"github.com/ringer-im/server/internal/live"
	"github.com/ringer-im/server/internal/push"
	"github.com/ringer-im/server/internal/server/handlers"
	"github.com/ringer-im/server/internal/store"
)

type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	scheduler  *destruct.Scheduler
	dispatcher *push.Dispatcher
	cancelBg   context.CancelFunc
}

func New(cfg *config.Config, st *store.Store, version string) *Server {
	registry := live.NewRegistry()
	verifier := auth.NewVerifier(cfg.Auth.ServerURL)
	dispatcher := push.NewDispatcher(cfg.Push.GatewayURL, st)
	engine := live.NewEngine(registry, st, dispatcher, verifier, cfg.Server.AllowedOrigins)
	scheduler := destruct.NewScheduler(st, registry)

	home := handlers.NewHome(version, cfg.IsProduction())
	friends := handlers.NewFriends(st, registry)
	requests := handlers.NewRequests(st, registry, dispatcher)
	messages := handlers.NewMessages(st)
	conversations := handlers.NewConversations(st, registry)
	notifications := handlers.NewNotifications(st)
	users := handlers.NewUsers(st)
	gifsHandler := handlers.NewGifs(gifs.NewClient(cfg.Giphy.APIKey))
	safety := handlers.NewSafety(linksafety.NewClient(cfg.SafeBrowsing.APIKey))

	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	r.Get("/", home.Index)
	r.Get("/docs", home.Docs)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/v1/live-updates", engine)

	// unauthenticated: GIF search carries no user data, and clients
	// unregister push tokens after logging out
	r.Get("/gifs/v1/search", gifsHandler.Search)
	r.Post("/notifications/v1/unregister", notifications.Unregister)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(verifier))

		r.Get("/friends/v1/get_friends", friends.GetFriends)

		r.Get("/friend_requests/v1/get_requests", requests.Incoming)
		r.Get("/friend_requests/v1/outgoing_requests", requests.Outgoing)
		r.Post("/friend_requests/v1/add_friend", requests.AddFriend)
		r.Post("/friend_requests/v1/accept_request", requests.Accept)
		r.Post("/friend_requests/v1/deny_request", requests.Deny)

		r.Get("/messages/v1/load/{conversationId}", messages.Load)
		r.Get("/messages/v1/new/{conversationId}", messages.New)
		r.Delete("/conversations/v1/remove/{conversationId}", conversations.Remove)

		r.Post("/notifications/v1/register", notifications.Register)

		r.Post("/link_safety_check", safety.Check)
		r.Get("/users/v1/search", users.Search)
	})

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		scheduler:  scheduler,
		dispatcher: dispatcher,
	}
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the destruct scheduler and serves HTTP until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.cancelBg = cancel
	go s.scheduler.Run(bgCtx)

	slog.Info("server: listening", "addr", s.httpServer.Addr, "production", s.cfg.IsProduction())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains HTTP, stops the scheduler, and flushes the push queue.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelBg != nil {
		s.cancelBg()
	}
	err := s.httpServer.Shutdown(ctx)
	s.dispatcher.Close()
	return err
}
