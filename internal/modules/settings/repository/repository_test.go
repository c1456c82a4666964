package repository

import (
	"context"
	"regexp"
	"testing"

	"anoa.com/challengebot/internal/entity"
	"anoa.com/challengebot/pkg/apperror"
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

func TestFindByGuildNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "guild_settings" WHERE guild_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"guild_id"}))

	_, err := repo.FindByGuild(context.Background(), "g1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByGuild(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "guild_settings" WHERE guild_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"guild_id", "points_per_submission", "points_per_vote", "vote_emoji"}).
			AddRow("g1", 3, 2, "🔥"))

	s, err := repo.FindByGuild(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, s.PointsPerSubmission)
	assert.Equal(t, 2, s.PointsPerVote)
	assert.Equal(t, "🔥", s.VoteEmoji)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOnlyTouchesNamedColumns(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectExec(`INSERT INTO "guild_settings" .* ON CONFLICT \("guild_id"\) DO UPDATE SET "points_per_vote"="excluded"."points_per_vote","updated_at"="excluded"."updated_at"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := entity.DefaultSettings("g1")
	s.PointsPerVote = 4
	columns := []string{"points_per_vote"}

	require.NoError(t, repo.Upsert(context.Background(), &s, columns))
	assert.Equal(t, []string{"points_per_vote"}, columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
