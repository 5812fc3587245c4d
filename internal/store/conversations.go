package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ringer-im/server/internal/domain"
)

// Conversations store their member pair as a JSON blob, matching the
// legacy row layout.
func (s *Store) CreateConversation(ctx context.Context, conversationID, memberOne, memberTwo string) error {
	members, err := json.Marshal([]string{memberOne, memberTwo})
	if err != nil {
		return storageErr("create conversation", err)
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO conversations (conversation_id, members, create_time)
		VALUES ($1, $2, now())
	`, conversationID, members)
	return storageErr("create conversation", err)
}

// Members returns the two participants of a conversation.
func (s *Store) Members(ctx context.Context, conversationID string) ([]string, error) {
	var raw []byte
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT members
		FROM conversations
		WHERE conversation_id = $1
	`, conversationID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %q: %w", conversationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("load conversation", err)
	}

	var members []string
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, storageErr("decode members", err)
	}
	if len(members) != 2 {
		return nil, storageErr("load conversation",
			fmt.Errorf("conversation %q has %d members", conversationID, len(members)))
	}
	return members, nil
}

// RemoveConversation deletes a conversation, its messages, and the
// friendship entries pointing at it, in one transaction. Only a member
// may remove it. Returns the other member.
func (s *Store) RemoveConversation(ctx context.Context, conversationID, actor string) (other string, err error) {
	err = s.WithTx(ctx, func(ctx context.Context) error {
		members, err := s.Members(ctx, conversationID)
		if err != nil {
			return err
		}
		switch actor {
		case members[0]:
			other = members[1]
		case members[1]:
			other = members[0]
		default:
			return fmt.Errorf("%s not in conversation %q: %w", actor, conversationID, domain.ErrPermissionDenied)
		}

		if _, err := s.conn(ctx).Exec(ctx, `
			DELETE FROM messages WHERE conversation_id = $1
		`, conversationID); err != nil {
			return storageErr("delete messages", err)
		}
		if err := s.RemoveFriendPair(ctx, members[0], members[1], conversationID); err != nil {
			return err
		}
		_, err = s.conn(ctx).Exec(ctx, `
			DELETE FROM conversations WHERE conversation_id = $1
		`, conversationID)
		return storageErr("delete conversation", err)
	})
	if err != nil {
		return "", err
	}
	return other, nil
}
