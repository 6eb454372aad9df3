package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/models"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewWithConn(conn), mock
}

func TestGetAPIKey(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "key_hash", "key_prefix", "name", "caller_id", "rate_limit_per_minute",
		"is_active", "last_used_at", "created_at", "updated_at",
	}).AddRow("key-1", HashKey("rk_live_abc"), "rk_live", "app", "user-42", 15, true, nil, created, created)

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys")).
		WithArgs(HashKey("rk_live_abc")).
		WillReturnRows(rows)

	key, err := db.GetAPIKey(context.Background(), "rk_live_abc")
	require.NoError(t, err)
	require.Equal(t, "user-42", key.CallerID)
	require.Equal(t, 15, key.RateLimitPerMinute)
	require.Nil(t, key.LastUsedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAPIKey_Unknown(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.GetAPIKey(context.Background(), "nope")
	require.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestGetAPIKey_DatabaseError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys")).
		WillReturnError(errors.New("connection reset"))

	_, err := db.GetAPIKey(context.Background(), "rk")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidAPIKey)
}

func TestUpdateAPIKeyLastUsed(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys SET last_used_at")).
		WithArgs("key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.UpdateAPIKeyLastUsed(context.Background(), "key-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRequest(t *testing.T) {
	db, mock := newMockDB(t)
	conv := "c1"
	entry := &models.GatewayLog{
		RequestID:        "req-1",
		CallerID:         "user-42",
		ConversationID:   &conv,
		Tier:             "light",
		Model:            "claude-haiku-4-5-20251001",
		CostMinorUnits:   2,
		LatencyMs:        310,
		PromptTokens:     12,
		CompletionTokens: 7,
		TotalTokens:      19,
		Status:           models.StatusOK,
		CreatedAt:        time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_request_logs")).
		WithArgs("req-1", "user-42", sqlmock.AnyArg(), "light", "claude-haiku-4-5-20251001",
			int64(2), int64(310), int64(12), int64(7), int64(19), false, models.StatusOK,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, db.LogRequest(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRequest_Error(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_request_logs")).
		WillReturnError(errors.New("relation does not exist"))

	err := db.LogRequest(context.Background(), &models.GatewayLog{RequestID: "r"})
	require.Error(t, err)
}
