// internal/history/postgres_test.go
package history

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, maxEntries int) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db, maxEntries, NewTestLogger(t)), mock
}

func TestPostgresStore_Append(t *testing.T) {
	store, mock := newMockStore(t, 1000)
	record := testRecord(1)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversation_history`)).
		WithArgs(record.ConversationID, record.Message, record.Answer, record.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM conversation_history WHERE id NOT IN`)).
		WithArgs(1000).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Append(context.Background(), record)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendInsertFails(t *testing.T) {
	store, mock := newMockStore(t, 1000)
	record := testRecord(1)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversation_history`)).
		WithArgs(record.ConversationID, record.Message, record.Answer, record.Timestamp).
		WillReturnError(assert.AnError)

	err := store.Append(context.Background(), record)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t, 1000)
	first := testRecord(1)
	second := testRecord(2)

	rows := sqlmock.NewRows([]string{"conversation_id", "message", "answer", "created_at"}).
		AddRow(first.ConversationID, first.Message, first.Answer, first.Timestamp).
		AddRow(second.ConversationID, second.Message, second.Answer, second.Timestamp)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT conversation_id, message, answer, created_at FROM conversation_history ORDER BY id ASC`)).
		WillReturnRows(rows)

	records, err := store.List(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "conv-1", records[0].ConversationID)
	assert.Equal(t, "answer 2", records[1].Answer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Clear(t *testing.T) {
	store, mock := newMockStore(t, 1000)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM conversation_history`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := store.Clear(context.Background())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearSingleConversation(t *testing.T) {
	store, mock := newMockStore(t, 1000)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM conversation_history WHERE conversation_id = ANY($1)`)).
		WithArgs(pq.Array([]string{"conv-2"})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Clear(context.Background(), "conv-2")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
