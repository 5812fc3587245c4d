package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ringer-im/server/internal/domain"
)

// friendEntry is one element of the users.friends JSON blob. The field
// casing is load-bearing: existing rows were written with these keys.
type friendEntry struct {
	Username string `json:"Username"`
	ID       string `json:"Id"`
}

// CreateUserIfMissing inserts a user row with an empty friendship list.
// Existing rows are left untouched.
func (s *Store) CreateUserIfMissing(ctx context.Context, username string) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO users (username, friends)
		VALUES ($1, '[]')
		ON CONFLICT (username) DO NOTHING
	`, username)
	return storageErr("create user", err)
}

func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)
	`, username).Scan(&exists)
	if err != nil {
		return false, storageErr("user exists", err)
	}
	return exists, nil
}

func (s *Store) friendBlob(ctx context.Context, username string, forUpdate bool) ([]friendEntry, error) {
	query := `SELECT friends FROM users WHERE username = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := s.conn(ctx).QueryRow(ctx, query, username).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("load friends", err)
	}

	var entries []friendEntry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, storageErr("decode friends", err)
		}
	}
	return entries, nil
}

func (s *Store) writeFriendBlob(ctx context.Context, username string, entries []friendEntry) error {
	if entries == nil {
		entries = []friendEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return storageErr("encode friends", err)
	}
	_, err = s.conn(ctx).Exec(ctx, `
		UPDATE users SET friends = $2 WHERE username = $1
	`, username, raw)
	return storageErr("store friends", err)
}

// GetFriends returns the user's friendship list enriched with unread
// counts and a last-message preview per conversation.
func (s *Store) GetFriends(ctx context.Context, username string) ([]domain.Friend, error) {
	entries, err := s.friendBlob(ctx, username, false)
	if err != nil {
		return nil, err
	}

	friends := make([]domain.Friend, 0, len(entries))
	convIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		friends = append(friends, domain.Friend{
			Username:       e.Username,
			ConversationID: e.ID,
		})
		convIDs = append(convIDs, e.ID)
	}
	if len(convIDs) == 0 {
		return friends, nil
	}

	rows, err := s.conn(ctx).Query(ctx, `
		SELECT conversation_id,
		       count(*) FILTER (WHERE author != $2 AND viewed IS NOT TRUE),
		       (array_agg(content ORDER BY send_time DESC))[1]
		FROM messages
		WHERE conversation_id = ANY($1)
		GROUP BY conversation_id
	`, convIDs, username)
	if err != nil {
		return nil, storageErr("friend previews", err)
	}
	defer rows.Close()

	type preview struct {
		unread int
		last   *string
	}
	previews := make(map[string]preview, len(convIDs))
	for rows.Next() {
		var convID string
		var p preview
		if err := rows.Scan(&convID, &p.unread, &p.last); err != nil {
			return nil, storageErr("friend previews", err)
		}
		previews[convID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("friend previews", err)
	}

	for i := range friends {
		if p, ok := previews[friends[i].ConversationID]; ok {
			friends[i].UnreadMessages = p.unread
			friends[i].LastMessage = p.last
		}
	}
	return friends, nil
}

// FriendIdentities returns just the usernames of the user's friends.
func (s *Store) FriendIdentities(ctx context.Context, username string) ([]string, error) {
	entries, err := s.friendBlob(ctx, username, false)
	if err != nil {
		return nil, err
	}
	identities := make([]string, 0, len(entries))
	for _, e := range entries {
		identities = append(identities, e.Username)
	}
	return identities, nil
}

// AreFriends reports whether other appears in username's friendship
// list, and if so the conversation joining them.
func (s *Store) AreFriends(ctx context.Context, username, other string) (bool, string, error) {
	entries, err := s.friendBlob(ctx, username, false)
	if err != nil {
		return false, "", err
	}
	for _, e := range entries {
		if e.Username == other {
			return true, e.ID, nil
		}
	}
	return false, "", nil
}

// AddFriendPair links two users through a shared conversation, updating
// both friendship lists. Call inside a transaction.
func (s *Store) AddFriendPair(ctx context.Context, first, second, conversationID string) error {
	for _, pair := range [][2]string{{first, second}, {second, first}} {
		entries, err := s.friendBlob(ctx, pair[0], true)
		if err != nil {
			return err
		}
		entries = append(entries, friendEntry{Username: pair[1], ID: conversationID})
		if err := s.writeFriendBlob(ctx, pair[0], entries); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFriendPair drops the entry for conversationID from both users'
// friendship lists. Call inside a transaction.
func (s *Store) RemoveFriendPair(ctx context.Context, first, second, conversationID string) error {
	for _, name := range []string{first, second} {
		entries, err := s.friendBlob(ctx, name, true)
		if err != nil {
			return err
		}
		kept := entries[:0]
		for _, e := range entries {
			if e.ID != conversationID {
				kept = append(kept, e)
			}
		}
		if err := s.writeFriendBlob(ctx, name, kept); err != nil {
			return err
		}
	}
	return nil
}

// UnreadCountTotal counts unviewed messages addressed to the user across
// every conversation in their friendship list.
func (s *Store) UnreadCountTotal(ctx context.Context, username string) (int, error) {
	entries, err := s.friendBlob(ctx, username, false)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	convIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		convIDs = append(convIDs, e.ID)
	}

	var count int
	err = s.conn(ctx).QueryRow(ctx, `
		SELECT count(*)
		FROM messages
		WHERE conversation_id = ANY($1)
		  AND author != $2
		  AND viewed IS NOT TRUE
	`, convIDs, username).Scan(&count)
	if err != nil {
		return 0, storageErr("unread total", err)
	}
	return count, nil
}

// SearchUsers finds usernames matching the term by sound or substring.
// Requires the fuzzystrmatch extension.
func (s *Store) SearchUsers(ctx context.Context, term string) ([]string, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT username
		FROM users
		WHERE soundex(username) = soundex($1)
		   OR username ILIKE '%' || $1 || '%'
		ORDER BY username
		LIMIT 10
	`, term)
	if err != nil {
		return nil, storageErr("search users", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr("search users", err)
		}
		usernames = append(usernames, name)
	}
	return usernames, storageErr("search users", rows.Err())
}
