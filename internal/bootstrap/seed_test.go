package bootstrap

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestSeedGuildSettingsKeepsExisting(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectExec(`INSERT INTO "guild_settings" .* ON CONFLICT DO NOTHING`).
		WithArgs("G", 1, 1, "👍", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, SeedGuildSettings(db, "G"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedGuildSettingsWithoutGuild(t *testing.T) {
	db, mock := setupTestDB(t)
	require.NoError(t, SeedGuildSettings(db, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}
