package memory

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	defer s.Close()

	same := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, m := range []Message{
		{UserID: "ua", Role: RoleUser, Content: "one", CreatedAt: same},
		{UserID: "ub", Role: RoleUser, Content: "other", CreatedAt: same},
		{UserID: "ua", Role: RoleSystem, Content: "name:Ann", CreatedAt: same},
		{UserID: "ua", Role: RoleAssistant, Content: "two", CreatedAt: same},
		{UserID: "ua", Role: RoleUser, Content: "three", CreatedAt: same},
	} {
		_, err := s.SaveMessage(ctx, m)
		require.NoError(t, err)
	}

	recent, err := s.RecentMessages(ctx, "ua", 2, RoleUser, RoleAssistant)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "three", recent[1].Content)
	assert.True(t, recent[0].CreatedAt.Equal(same))

	all, err := s.RecentMessages(ctx, "ua", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	facts, err := s.Messages(ctx, "ua", RoleSystem)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "name:Ann", facts[0].Content)

	none, err := s.Messages(ctx, "ub", RoleSystem)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStoreQueriesWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS memory_messages")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, db)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO memory_messages (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)")).
		WithArgs("m-1", "u1", "user", "hello", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	saved, err := s.SaveMessage(ctx, Message{ID: "m-1", UserID: "u1", Role: RoleUser, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), saved.Seq)

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	rows := sqlmock.NewRows([]string{"id", "seq", "user_id", "role", "content", "created_at"}).
		AddRow("m-9", 9, "u1", "assistant", "newest", ts).
		AddRow("m-7", 7, "u1", "user", "hello", ts)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, seq, user_id, role, content, created_at FROM memory_messages WHERE user_id = ? AND role IN (?, ?) ORDER BY seq DESC LIMIT ?")).
		WithArgs("u1", "user", "assistant", 2).
		WillReturnRows(rows)

	got, err := s.RecentMessages(ctx, "u1", 2, RoleUser, RoleAssistant)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, RoleAssistant, got[1].Role)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreSaveErrorWraps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, db)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO memory_messages").WillReturnError(sqlmock.ErrCancelled)
	_, err = s.SaveMessage(ctx, Message{UserID: "u1", Role: RoleUser, Content: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlmock.ErrCancelled)
}
