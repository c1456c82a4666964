package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/challengebot/internal/entity"
	"anoa.com/challengebot/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reversal is one member's share of a challenge's ledger entries, undone on delete.
type Reversal struct {
	GuildID string
	UserID  string
	Amount  int
	Balance int
}

type ChallengeRepository interface {
	Create(ctx context.Context, challenge *entity.Challenge) error
	AttachMessage(ctx context.Context, id uint, messageID, threadID string) error
	FindByID(ctx context.Context, id uint) (*entity.Challenge, error)
	CountSubmissions(ctx context.Context, id uint) (int64, error)
	ListActive(ctx context.Context, guildID string) ([]entity.Challenge, error)
	ListTemplates(ctx context.Context, guildID string) ([]entity.Challenge, error)
	// ListActiveTemplates spans every guild; the scheduler loads it at startup.
	ListActiveTemplates(ctx context.Context) ([]entity.Challenge, error)
	// Deactivate flips is_active only if it is still set, so two concurrent
	// closes cannot both succeed.
	Deactivate(ctx context.Context, id uint) error
	// Delete removes the challenge, cascading to submissions and votes. With
	// reversePoints the challenge's ledger entries are summed per member,
	// subtracted from balances and purged in the same transaction.
	Delete(ctx context.Context, id uint, reversePoints bool) ([]Reversal, error)
}

type challengeRepository struct {
	db *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) Create(ctx context.Context, challenge *entity.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *challengeRepository) AttachMessage(ctx context.Context, id uint, messageID, threadID string) error {
	updates := map[string]interface{}{"message_id": nilIfEmpty(messageID), "thread_id": nilIfEmpty(threadID)}
	return r.db.WithContext(ctx).
		Model(&entity.Challenge{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *challengeRepository) FindByID(ctx context.Context, id uint) (*entity.Challenge, error) {
	var c entity.Challenge
	err := r.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *challengeRepository) CountSubmissions(ctx context.Context, id uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Submission{}).Where("challenge_id = ?", id).Count(&n).Error
	return n, err
}

func (r *challengeRepository) ListActive(ctx context.Context, guildID string) ([]entity.Challenge, error) {
	var out []entity.Challenge
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND is_active = ? AND is_template = ?", guildID, true, false).
		Order("id DESC").
		Find(&out).Error
	return out, err
}

func (r *challengeRepository) ListTemplates(ctx context.Context, guildID string) ([]entity.Challenge, error) {
	var out []entity.Challenge
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND is_template = ?", guildID, true).
		Order("id DESC").
		Find(&out).Error
	return out, err
}

func (r *challengeRepository) ListActiveTemplates(ctx context.Context) ([]entity.Challenge, error) {
	var out []entity.Challenge
	err := r.db.WithContext(ctx).
		Where("is_template = ? AND is_active = ?", true, true).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *challengeRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&entity.Challenge{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrAlreadyClosed
	}
	return nil
}

func (r *challengeRepository) Delete(ctx context.Context, id uint, reversePoints bool) ([]Reversal, error) {
	var reversals []Reversal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reversePoints {
			var err error
			if reversals, err = reverseLedger(tx, *entity.ChallengeRef(id)); err != nil {
				return err
			}
		}

		res := tx.Delete(&entity.Challenge{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversals, nil
}

func reverseLedger(tx *gorm.DB, relatedID string) ([]Reversal, error) {
	var sums []Reversal
	err := tx.Model(&entity.PointLog{}).
		Select("guild_id, user_id, SUM(amount) AS amount").
		Where("related_id = ?", relatedID).
		Group("guild_id, user_id").
		Scan(&sums).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range sums {
		if sums[i].Amount == 0 {
			continue
		}
		var bal entity.Balance
		err := tx.Model(&bal).
			Clauses(clause.Returning{Columns: []clause.Column{{Name: "points"}}}).
			Where("guild_id = ? AND user_id = ?", sums[i].GuildID, sums[i].UserID).
			Updates(map[string]interface{}{
				"points":     gorm.Expr("points - ?", sums[i].Amount),
				"updated_at": now,
			}).Error
		if err != nil {
			return nil, err
		}
		sums[i].Balance = bal.Points
	}

	if err := tx.Where("related_id = ?", relatedID).Delete(&entity.PointLog{}).Error; err != nil {
		return nil, err
	}
	return sums, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
