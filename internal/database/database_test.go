package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.MatchExpectationsInOrder(true)
	for range schema {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS images").WillReturnError(errors.New("disk full"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverConfig_ForcesParseTime(t *testing.T) {
	cfg, err := driverConfig("app:pw@tcp(db:3306)/visionhub?loc=Local")
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "UTC", cfg.Loc.String())
	assert.Equal(t, "visionhub", cfg.DBName)

	_, err = driverConfig("not a dsn")
	assert.Error(t, err)
}
