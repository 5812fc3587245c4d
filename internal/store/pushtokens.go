package store

import (
	"context"
)

// Push tokens expire 30 days after their last registration; clients
// re-register on every app start, sliding the window.
const pushTokenTTL = `now() + interval '30 days'`

// AddPushToken registers or refreshes a device push token. A token is
// unique across accounts: re-registering one someone else held moves it
// to the new user, so a shared device never gets pushed twice.
func (s *Store) AddPushToken(ctx context.Context, username, token string) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO push_notifications (username, token, expire_time)
		VALUES ($1, $2, `+pushTokenTTL+`)
		ON CONFLICT (token)
		DO UPDATE SET username = EXCLUDED.username, expire_time = `+pushTokenTTL+`
	`, username, token)
	return storageErr("add push token", err)
}

// RemovePushToken drops a token no matter which account it is bound to;
// clients unregister with the token alone.
func (s *Store) RemovePushToken(ctx context.Context, token string) error {
	_, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM push_notifications
		WHERE token = $1
	`, token)
	return storageErr("remove push token", err)
}

// PushTokens returns the user's live tokens and opportunistically prunes
// expired rows.
func (s *Store) PushTokens(ctx context.Context, username string) ([]string, error) {
	if _, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM push_notifications
		WHERE username = $1 AND expire_time <= now()
	`, username); err != nil {
		return nil, storageErr("prune push tokens", err)
	}

	rows, err := s.conn(ctx).Query(ctx, `
		SELECT token
		FROM push_notifications
		WHERE username = $1
	`, username)
	if err != nil {
		return nil, storageErr("load push tokens", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, storageErr("load push tokens", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, storageErr("load push tokens", rows.Err())
}
