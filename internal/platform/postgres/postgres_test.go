package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinledger/pkg/platform/sentinel"
)

func TestMigrateAppliesEmbeddedSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS agents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crypto_wallets").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateReportsFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_init.sql")
}

func TestHealthReportsUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	check := Health(db)
	mock.ExpectPing()
	assert.NoError(t, check(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = check(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorClassification(t *testing.T) {
	check := fmt.Errorf("update: %w", &pgconn.PgError{Code: "23514"})
	unique := &pgconn.PgError{Code: "23505"}

	assert.True(t, IsCheckViolation(check))
	assert.False(t, IsCheckViolation(unique))
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsForeignKeyViolation(errors.New("plain")))
}
