package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePushTokenStore struct {
	addedUser    string
	addedToken   string
	removedToken string
}

func (f *fakePushTokenStore) AddPushToken(_ context.Context, username, token string) error {
	f.addedUser = username
	f.addedToken = token
	return nil
}

func (f *fakePushTokenStore) RemovePushToken(_ context.Context, token string) error {
	f.removedToken = token
	return nil
}

func TestRegisterBindsTokenToCaller(t *testing.T) {
	store := &fakePushTokenStore{}
	h := NewNotifications(store)

	rec := doJSON(t, h.Register, http.MethodPost, "/notifications/v1/register",
		"alice", `{"push-token":"ExponentPushToken[aaa]"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", store.addedUser)
	assert.Equal(t, "ExponentPushToken[aaa]", store.addedToken)
}

func TestUnregisterNeedsNoIdentity(t *testing.T) {
	store := &fakePushTokenStore{}
	h := NewNotifications(store)

	// no identity in context: logged-out clients drop tokens too
	rec := doJSON(t, h.Unregister, http.MethodPost, "/notifications/v1/unregister",
		"", `{"push-token":"ExponentPushToken[aaa]"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ExponentPushToken[aaa]", store.removedToken)
}

func TestUnregisterRequiresToken(t *testing.T) {
	h := NewNotifications(&fakePushTokenStore{})

	rec := doJSON(t, h.Unregister, http.MethodPost, "/notifications/v1/unregister", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
