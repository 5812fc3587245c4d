package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ringer-im/server/internal/domain"
	"github.com/ringer-im/server/shared/id"
)

// CreateRequest records a pending friend request from sender to
// recipient. Fails with ErrNotFound when the recipient is unknown,
// ErrConflict when the two are already friends, and ErrAlreadyExists
// when an equivalent request is pending in either direction.
func (s *Store) CreateRequest(ctx context.Context, sender, recipient string, message *string) (*domain.FriendRequest, error) {
	exists, err := s.UserExists(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %q: %w", recipient, domain.ErrNotFound)
	}

	friends, _, err := s.AreFriends(ctx, sender, recipient)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, fmt.Errorf("%s and %s: %w", sender, recipient, domain.ErrConflict)
	}

	var pending bool
	err = s.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM friend_requests
			WHERE (sender = $1 AND recipient = $2)
			   OR (sender = $2 AND recipient = $1)
		)
	`, sender, recipient).Scan(&pending)
	if err != nil {
		return nil, storageErr("check pending request", err)
	}
	if pending {
		return nil, fmt.Errorf("request between %s and %s: %w", sender, recipient, domain.ErrAlreadyExists)
	}

	req := &domain.FriendRequest{
		RequestID: id.NewFriendRequest(),
		Sender:    sender,
		Recipient: recipient,
		Message:   message,
	}
	err = s.conn(ctx).QueryRow(ctx, `
		INSERT INTO friend_requests (request_id, sender, recipient, message, create_time)
		VALUES ($1, $2, $3, $4, now())
		RETURNING create_time
	`, req.RequestID, req.Sender, req.Recipient, req.Message).Scan(&req.CreateTime)
	if err != nil {
		return nil, storageErr("create request", err)
	}
	return req, nil
}

// RequestsFor lists pending requests addressed to the user, newest first.
func (s *Store) RequestsFor(ctx context.Context, recipient string) ([]domain.FriendRequest, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT request_id, sender, recipient, message, create_time
		FROM friend_requests
		WHERE recipient = $1
		ORDER BY create_time DESC
	`, recipient)
	if err != nil {
		return nil, storageErr("list requests", err)
	}
	defer rows.Close()

	var requests []domain.FriendRequest
	for rows.Next() {
		var r domain.FriendRequest
		if err := rows.Scan(&r.RequestID, &r.Sender, &r.Recipient, &r.Message, &r.CreateTime); err != nil {
			return nil, storageErr("list requests", err)
		}
		requests = append(requests, r)
	}
	return requests, storageErr("list requests", rows.Err())
}

// RequestsFrom lists the user's own pending outgoing requests.
func (s *Store) RequestsFrom(ctx context.Context, sender string) ([]domain.FriendRequest, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT request_id, sender, recipient, message, create_time
		FROM friend_requests
		WHERE sender = $1
		ORDER BY create_time DESC
	`, sender)
	if err != nil {
		return nil, storageErr("list requests", err)
	}
	defer rows.Close()

	var requests []domain.FriendRequest
	for rows.Next() {
		var r domain.FriendRequest
		if err := rows.Scan(&r.RequestID, &r.Sender, &r.Recipient, &r.Message, &r.CreateTime); err != nil {
			return nil, storageErr("list requests", err)
		}
		requests = append(requests, r)
	}
	return requests, storageErr("list requests", rows.Err())
}

func (s *Store) requestByID(ctx context.Context, requestID string) (*domain.FriendRequest, error) {
	var r domain.FriendRequest
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT request_id, sender, recipient, message, create_time
		FROM friend_requests
		WHERE request_id = $1
	`, requestID).Scan(&r.RequestID, &r.Sender, &r.Recipient, &r.Message, &r.CreateTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("request %q: %w", requestID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("load request", err)
	}
	return &r, nil
}

// AcceptRequest turns a pending request into a friendship: a fresh
// conversation is created, both friendship lists gain an entry, and the
// request row is removed, all in one transaction. Only the recipient may
// accept.
func (s *Store) AcceptRequest(ctx context.Context, requestID, actor string) (sender, conversationID string, err error) {
	err = s.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.requestByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Recipient != actor {
			return fmt.Errorf("request %q not addressed to %s: %w", requestID, actor, domain.ErrPermissionDenied)
		}

		sender = req.Sender
		conversationID = id.NewConversation()

		if err := s.CreateConversation(ctx, conversationID, req.Sender, req.Recipient); err != nil {
			return err
		}
		if err := s.AddFriendPair(ctx, req.Sender, req.Recipient, conversationID); err != nil {
			return err
		}
		_, err = s.conn(ctx).Exec(ctx, `
			DELETE FROM friend_requests WHERE request_id = $1
		`, requestID)
		return storageErr("delete request", err)
	})
	if err != nil {
		return "", "", err
	}
	return sender, conversationID, nil
}

// DenyRequest discards a pending request. Only the recipient may deny.
func (s *Store) DenyRequest(ctx context.Context, requestID, actor string) error {
	req, err := s.requestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Recipient != actor {
		return fmt.Errorf("request %q not addressed to %s: %w", requestID, actor, domain.ErrPermissionDenied)
	}
	_, err = s.conn(ctx).Exec(ctx, `
		DELETE FROM friend_requests WHERE request_id = $1
	`, requestID)
	return storageErr("delete request", err)
}
