package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ringer-im/server/internal/domain"
	"github.com/ringer-im/server/shared/id"
)

const messageColumns = `message_id, conversation_id, author, content,
	message_type, gif_url, self_destruct, viewed IS TRUE, delete_time, send_time`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.MessageID, &m.ConversationID, &m.Author, &m.Content,
		&m.MessageType, &m.GifURL, &m.SelfDestruct, &m.Viewed, &m.DeleteTime, &m.SendTime)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMessage persists a new message. The message ID and send time are
// assigned server-side; client timestamps are never stored.
func (s *Store) InsertMessage(ctx context.Context, conversationID, author, content string, messageType, gifURL *string, selfDestruct *int) (*domain.Message, error) {
	if _, err := s.Members(ctx, conversationID); err != nil {
		return nil, err
	}

	m := &domain.Message{
		MessageID:      id.NewMessage(),
		ConversationID: conversationID,
		Author:         author,
		Content:        content,
		MessageType:    messageType,
		GifURL:         gifURL,
		SelfDestruct:   selfDestruct,
	}
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO messages (message_id, conversation_id, author, content,
			message_type, gif_url, self_destruct, viewed, send_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, now())
		RETURNING send_time
	`, m.MessageID, m.ConversationID, m.Author, m.Content,
		m.MessageType, m.GifURL, m.SelfDestruct).Scan(&m.SendTime)
	if err != nil {
		return nil, storageErr("insert message", err)
	}
	return m, nil
}

func (s *Store) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	m, err := scanMessage(s.conn(ctx).QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE message_id = $1
	`, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message %q: %w", messageID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("load message", err)
	}
	return m, nil
}

// MessagesPage returns one fixed-size page of a conversation's history,
// newest first, plus the viewer's unread count for that conversation.
// The offset is a raw row offset, passed through from the client.
func (s *Store) MessagesPage(ctx context.Context, conversationID string, offset int, viewer string) ([]domain.Message, int, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY send_time DESC
		LIMIT $2 OFFSET $3
	`, conversationID, domain.PageSize, offset)
	if err != nil {
		return nil, 0, storageErr("load messages", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, storageErr("load messages", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("load messages", err)
	}

	var unread int
	err = s.conn(ctx).QueryRow(ctx, `
		SELECT count(*)
		FROM messages
		WHERE conversation_id = $1
		  AND author != $2
		  AND viewed IS NOT TRUE
	`, conversationID, viewer).Scan(&unread)
	if err != nil {
		return nil, 0, storageErr("unread count", err)
	}
	return messages, unread, nil
}

// MessagesAfter returns a conversation's messages newer than the given
// time, oldest first. Used for catch-up on app refresh.
func (s *Store) MessagesAfter(ctx context.Context, conversationID string, after time.Time) ([]domain.Message, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1 AND send_time > $2
		ORDER BY send_time ASC
	`, conversationID, after)
	if err != nil {
		return nil, storageErr("load messages", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storageErr("load messages", err)
		}
		messages = append(messages, *m)
	}
	return messages, storageErr("load messages", rows.Err())
}

// Marking viewed arms the destruct timer exactly once: a delete_time
// already set is never moved, and already-viewed rows are untouched.
const markViewedSet = `
	SET viewed = TRUE,
	    delete_time = CASE
	        WHEN self_destruct IS NOT NULL AND delete_time IS NULL
	        THEN now() + make_interval(mins => self_destruct)
	        ELSE delete_time
	    END
`

// MarkViewedSingle marks one message viewed, starting its self-destruct
// countdown if it carries a TTL. Idempotent.
func (s *Store) MarkViewedSingle(ctx context.Context, messageID string) error {
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE messages
		`+markViewedSet+`
		WHERE message_id = $1
		  AND viewed IS NOT TRUE
	`, messageID)
	return storageErr("mark viewed", err)
}

// MarkViewedBulk marks one page of the author's messages in the
// conversation as viewed, selected with the same raw row offset the
// history load uses. Runs in a transaction so the page selection and
// the update see the same rows. Idempotent.
func (s *Store) MarkViewedBulk(ctx context.Context, conversationID, author string, offset int) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.conn(ctx).Exec(ctx, `
			UPDATE messages
			`+markViewedSet+`
			WHERE message_id IN (
				SELECT message_id FROM messages
				WHERE conversation_id = $1 AND author = $2
				ORDER BY send_time DESC
				LIMIT $3 OFFSET $4
			)
			  AND viewed IS NOT TRUE
		`, conversationID, author, domain.PageSize, offset)
		return storageErr("mark viewed", err)
	})
}

// ExpiredMessages lists messages whose destruct deadline has passed.
func (s *Store) ExpiredMessages(ctx context.Context) ([]domain.ExpiredMessage, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT conversation_id, message_id
		FROM messages
		WHERE delete_time IS NOT NULL AND delete_time <= now()
	`)
	if err != nil {
		return nil, storageErr("expired messages", err)
	}
	defer rows.Close()

	var expired []domain.ExpiredMessage
	for rows.Next() {
		var e domain.ExpiredMessage
		if err := rows.Scan(&e.ConversationID, &e.MessageID); err != nil {
			return nil, storageErr("expired messages", err)
		}
		expired = append(expired, e)
	}
	return expired, storageErr("expired messages", rows.Err())
}

// DeleteMessages removes the given messages outright.
func (s *Store) DeleteMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM messages WHERE message_id = ANY($1)
	`, messageIDs)
	return storageErr("delete messages", err)
}
