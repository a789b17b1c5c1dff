package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

const insertUserQuery = "INSERT INTO users (username, email, password_hash, role) VALUES (?,?,?,?)"

func newUserRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(db), mock
}

func TestUserCreate(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(insertUserQuery)).
		WithArgs("alice", "alice@example.com", sqlmock.AnyArg(), "user").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := repo.Create(context.Background(), "alice", "Alice@Example.com ", "s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(insertUserQuery)).
		WithArgs("alice", "alice@example.com", sqlmock.AnyArg(), "user").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice@example.com' for key 'users.email'"})

	_, err := repo.Create(context.Background(), "alice", "alice@example.com", "s3cret", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id,username,email,password_hash,role,created_at,updated_at FROM users WHERE email=").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(42, "alice", "alice@example.com", "$2a$hash", "organizer", now, now))

	u, err := repo.GetByEmail(context.Background(), " Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), u.ID)
	assert.Equal(t, "organizer", u.Role)
}

func TestGetByEmailNotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT id,username,email,password_hash,role,created_at,updated_at FROM users WHERE email=").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}))

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
