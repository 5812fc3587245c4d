// Package auth verifies credentials against the external auth server.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ringer-im/server/shared/httpclient"
)

type Status int

const (
	// StatusValid means the credentials were accepted.
	StatusValid Status = iota
	// StatusInvalid means the auth server rejected the credentials.
	StatusInvalid
	// StatusSuspended means the account exists but is suspended.
	StatusSuspended
	// StatusTransportError means the auth server could not be reached
	// or answered outside its contract; never treated as a rejection.
	StatusTransportError
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusSuspended:
		return "suspended"
	default:
		return "transport_error"
	}
}

type Verifier struct {
	baseURL string
	client  *http.Client
}

func NewVerifier(baseURL string) *Verifier {
	return &Verifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewShort(),
	}
}

// Verify checks a username/token pair. A failure to reach the auth
// server is reported as StatusTransportError so callers can distinguish
// "rejected" from "unknown".
func (v *Verifier) Verify(ctx context.Context, username, token string) Status {
	form := url.Values{
		"username": {username},
		"token":    {token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.baseURL+"/auth/verify_token", strings.NewReader(form.Encode()))
	if err != nil {
		return StatusTransportError
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		slog.Warn("auth: verify request failed", "error", err)
		return StatusTransportError
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return StatusValid
	case resp.StatusCode == http.StatusForbidden:
		return StatusSuspended
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return StatusInvalid
	default:
		slog.Warn("auth: unexpected verify status", "status", resp.StatusCode)
		return StatusTransportError
	}
}
