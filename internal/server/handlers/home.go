package handlers

import (
	"net/http"
)

type Home struct {
	version    string
	production bool
}

func NewHome(version string, production bool) *Home {
	return &Home{version: version, production: production}
}

func (h *Home) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "ringer-server",
		"version": h.version,
		"status":  "ok",
	})
}

// Docs lists the API surface; hidden in production.
func (h *Home) Docs(w http.ResponseWriter, r *http.Request) {
	if h.production {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"routes": []string{
			"GET  /",
			"GET  /friends/v1/get_friends",
			"GET  /friend_requests/v1/get_requests",
			"GET  /friend_requests/v1/outgoing_requests",
			"POST /friend_requests/v1/add_friend",
			"POST /friend_requests/v1/accept_request",
			"POST /friend_requests/v1/deny_request",
			"GET  /messages/v1/load/{conversationId}",
			"GET  /messages/v1/new/{conversationId}",
			"DELETE /conversations/v1/remove/{conversationId}",
			"POST /notifications/v1/register",
			"POST /notifications/v1/unregister",
			"GET  /gifs/v1/search",
			"POST /link_safety_check",
			"GET  /users/v1/search",
			"GET  /metrics",
			"WS   /v1/live-updates",
		},
	})
}
