package repository

import (
	"context"
	"errors"

	"anoa.com/challengebot/internal/entity"
	"anoa.com/challengebot/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	FindByGuild(ctx context.Context, guildID string) (*entity.GuildSettings, error)
	// Upsert inserts settings, or on conflict overwrites only the named columns.
	Upsert(ctx context.Context, settings *entity.GuildSettings, columns []string) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) FindByGuild(ctx context.Context, guildID string) (*entity.GuildSettings, error) {
	var s entity.GuildSettings
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings *entity.GuildSettings, columns []string) error {
	cols := append(append([]string{}, columns...), "updated_at")
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(settings).Error
}
