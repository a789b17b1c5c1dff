package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectRefreshQuery = "SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1"

func newTokenRepo(t *testing.T) (*TokenRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTokenRepo(db), mock
}

func refreshRow(userID uint64, expiresAt time.Time, revokedAt interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
		AddRow(userID, expiresAt, revokedAt)
}

func TestValidateRefresh(t *testing.T) {
	future := time.Now().UTC().Add(24 * time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantID  uint64
		wantErr error
	}{
		{
			name:   "active token resolves to its owner",
			rows:   refreshRow(7, future, nil),
			wantID: 7,
		},
		{
			name:    "unknown hash",
			rows:    sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}),
			wantErr: ErrRefreshInvalid,
		},
		{
			name:    "revoked token",
			rows:    refreshRow(7, future, past),
			wantErr: ErrRefreshInvalid,
		},
		{
			name:    "expired token",
			rows:    refreshRow(7, past, nil),
			wantErr: ErrRefreshInvalid,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newTokenRepo(t)
			mock.ExpectQuery(regexp.QuoteMeta(selectRefreshQuery)).
				WithArgs("somehash").
				WillReturnRows(tc.rows)

			userID, err := repo.ValidateRefresh(context.Background(), "somehash")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.wantID, userID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestValidateRefreshQueryFailure(t *testing.T) {
	repo, mock := newTokenRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectRefreshQuery)).
		WithArgs("somehash").
		WillReturnError(sql.ErrConnDone)

	_, err := repo.ValidateRefresh(context.Background(), "somehash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRefreshInvalid)
}

func TestStoreAndRevokeRefresh(t *testing.T) {
	repo, mock := newTokenRepo(t)
	exp := time.Now().UTC().Add(30 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)")).
		WithArgs(uint64(7), "somehash", exp).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL")).
		WithArgs("somehash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.StoreRefresh(context.Background(), 7, "somehash", exp))
	require.NoError(t, repo.RevokeByHash(context.Background(), "somehash"))
	require.NoError(t, repo.RevokeAllForUser(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
