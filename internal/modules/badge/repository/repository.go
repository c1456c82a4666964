package repository

import (
	"context"
	"errors"

	"anoa.com/challengebot/internal/entity"
	"anoa.com/challengebot/pkg/apperror"
	"gorm.io/gorm"
)

type BadgeRepository interface {
	Create(ctx context.Context, badge *entity.BadgeRole) error
	// ListByGuild returns thresholds ascending.
	ListByGuild(ctx context.Context, guildID string) ([]entity.BadgeRole, error)
	Delete(ctx context.Context, guildID string, id uint) error
}

type badgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) Create(ctx context.Context, badge *entity.BadgeRole) error {
	err := r.db.WithContext(ctx).Create(badge).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.ErrDuplicateBadge
	}
	return err
}

func (r *badgeRepository) ListByGuild(ctx context.Context, guildID string) ([]entity.BadgeRole, error) {
	var badges []entity.BadgeRole
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("points_required ASC, id ASC").
		Find(&badges).Error
	return badges, err
}

func (r *badgeRepository) Delete(ctx context.Context, guildID string, id uint) error {
	res := r.db.WithContext(ctx).
		Where("guild_id = ? AND id = ?", guildID, id).
		Delete(&entity.BadgeRole{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}
