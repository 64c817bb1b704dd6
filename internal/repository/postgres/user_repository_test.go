package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"minimal-user/internal/domain"
	"minimal-user/internal/repository"
)

func newMockRepository(t *testing.T) (repository.UserRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = mockDB.Close()
	})

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return NewUserRepository(gormDB), mock
}

func TestUserRepository_FindByUsernameBindsInput(t *testing.T) {
	lookup := regexp.QuoteMeta(`SELECT id, username, email FROM users WHERE username = $1`)

	t.Run("match", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("^" + lookup + "$").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).
				AddRow(7, "alice", "alice@example.com"))

		found, err := repo.FindByUsername(context.Background(), "alice")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, domain.UserSummary{ID: 7, Username: "alice", Email: "alice@example.com"}, *found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("injection attempt is a bind argument", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		input := "' OR '1'='1"
		mock.ExpectQuery("^" + lookup + "$").
			WithArgs(input).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}))

		found, err := repo.FindByUsername(context.Background(), input)
		require.NoError(t, err)
		assert.Nil(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store failure propagates", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("^" + lookup + "$").
			WithArgs("bob").
			WillReturnError(sql.ErrConnDone)

		_, err := repo.FindByUsername(context.Background(), "bob")
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_GetByUsernameNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1 ORDER BY "users"\."id" LIMIT \$2`).
		WithArgs("ghost", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicateUsername(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &domain.User{Username: "alice", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrUserAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
