package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringer-im/server/internal/domain"
)

// setupMock returns a store whose context carries the mock as the
// active transaction, so WithTx reuses it instead of opening one.
func setupMock(t *testing.T) (pgxmock.PgxPoolIface, *Store, context.Context) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	st := New(nil)
	ctx := context.WithValue(context.Background(), txKey{}, querier(mock))
	return mock, st, ctx
}

func TestInsertMessageMissingConversation(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectQuery(`SELECT members`).
		WithArgs("conv_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.InsertMessage(ctx, "conv_missing", "alice", "hi", nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessageAssignsServerSendTime(t *testing.T) {
	mock, st, ctx := setupMock(t)

	sendTime := time.Now().UTC()
	mock.ExpectQuery(`SELECT members`).
		WithArgs("conv_1").
		WillReturnRows(pgxmock.NewRows([]string{"members"}).
			AddRow([]byte(`["alice","bob"]`)))
	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"send_time"}).AddRow(sendTime))

	minutes := 5
	msg, err := st.InsertMessage(ctx, "conv_1", "alice", "secret", nil, nil, &minutes)
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Author)
	assert.Equal(t, sendTime, msg.SendTime)
	assert.Equal(t, 5, *msg.SelfDestruct)
	assert.False(t, msg.Viewed)
	assert.NotEmpty(t, msg.MessageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkViewedSingleIdempotentSQL(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectExec(`UPDATE messages`).
		WithArgs("msg_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.MarkViewedSingle(ctx, "msg_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkViewedBulkUsesRawOffset(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectExec(`UPDATE messages`).
		WithArgs("conv_1", "bob", domain.PageSize, 20).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	require.NoError(t, st.MarkViewedBulk(ctx, "conv_1", "bob", 20))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagesPageOffsetPassesThrough(t *testing.T) {
	mock, st, ctx := setupMock(t)

	messageCols := []string{"message_id", "conversation_id", "author", "content",
		"message_type", "gif_url", "self_destruct", "viewed", "delete_time", "send_time"}

	// offset=1 skips exactly one row, never a whole page
	mock.ExpectQuery(`ORDER BY send_time DESC`).
		WithArgs("conv_1", domain.PageSize, 1).
		WillReturnRows(pgxmock.NewRows(messageCols))
	mock.ExpectQuery(`SELECT count`).
		WithArgs("conv_1", "alice").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := st.MessagesPage(ctx, "conv_1", 1, "alice")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptRequestWrongRecipient(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectQuery(`SELECT request_id, sender, recipient, message, create_time`).
		WithArgs("req_1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"request_id", "sender", "recipient", "message", "create_time"}).
			AddRow("req_1", "alice", "carol", (*string)(nil), time.Now()))

	_, _, err := st.AcceptRequest(ctx, "req_1", "bob")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequestDuplicatePending(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("bob").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT friends FROM users`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"friends"}).AddRow([]byte(`[]`)))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("alice", "bob").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := st.CreateRequest(ctx, "alice", "bob", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequestAlreadyFriends(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("bob").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT friends FROM users`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"friends"}).
			AddRow([]byte(`[{"Username":"bob","Id":"conv_1"}]`)))

	_, err := st.CreateRequest(ctx, "alice", "bob", nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFriendsMergesPreviews(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectQuery(`SELECT friends FROM users`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"friends"}).
			AddRow([]byte(`[{"Username":"bob","Id":"conv_1"},{"Username":"carol","Id":"conv_2"}]`)))

	last := "see you"
	mock.ExpectQuery(`FROM messages`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"conversation_id", "count", "last"}).
			AddRow("conv_1", 2, &last))

	friends, err := st.GetFriends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, "bob", friends[0].Username)
	assert.Equal(t, 2, friends[0].UnreadMessages)
	require.NotNil(t, friends[0].LastMessage)
	assert.Equal(t, "see you", *friends[0].LastMessage)
	// no messages yet in conv_2
	assert.Equal(t, 0, friends[1].UnreadMessages)
	assert.Nil(t, friends[1].LastMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveConversationNotMember(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectQuery(`SELECT members`).
		WithArgs("conv_1").
		WillReturnRows(pgxmock.NewRows([]string{"members"}).
			AddRow([]byte(`["alice","bob"]`)))

	_, err := st.RemoveConversation(ctx, "conv_1", "mallory")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembersUnknownConversation(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectQuery(`SELECT members`).
		WithArgs("conv_nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.Members(ctx, "conv_nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddPushTokenUpsertsOnTokenAlone(t *testing.T) {
	mock, st, ctx := setupMock(t)

	// a token re-registered by another account moves to that account
	mock.ExpectExec(`ON CONFLICT \(token\)`).
		WithArgs("bob", "ExponentPushToken[aaa]").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.AddPushToken(ctx, "bob", "ExponentPushToken[aaa]"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemovePushTokenByTokenOnly(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectExec(`DELETE FROM push_notifications`).
		WithArgs("ExponentPushToken[aaa]").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, st.RemovePushToken(ctx, "ExponentPushToken[aaa]"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadCountTotalEmptyFriendList(t *testing.T) {
	mock, st, ctx := setupMock(t)

	mock.ExpectQuery(`SELECT friends FROM users`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"friends"}).AddRow([]byte(`[]`)))

	count, err := st.UnreadCountTotal(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
