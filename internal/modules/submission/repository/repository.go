package repository

import (
	"context"
	"errors"

	"anoa.com/challengebot/internal/entity"
	pointsRepo "anoa.com/challengebot/internal/modules/points/repository"
	"anoa.com/challengebot/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteOutcome is what a committed vote change did.
type VoteOutcome struct {
	Changed bool
	Added   bool
	Votes   int
	// Balance is the author's balance after the award; only set when Awarded != 0.
	Balance int
	Awarded int
}

type SubmissionRepository interface {
	// CreateWithAward inserts sub and, when award is non-nil, writes the award to
	// the ledger in the same transaction. Returns the author's balance.
	CreateWithAward(ctx context.Context, sub *entity.Submission, award *entity.PointLog) (int, error)
	FindByID(ctx context.Context, id uint) (*entity.Submission, error)
	FindByMessageID(ctx context.Context, messageID string) (*entity.Submission, error)
	ListByChallenge(ctx context.Context, challengeID uint) ([]entity.Submission, error)
	UpdateContent(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	// ToggleVote removes an existing vote or inserts a new one. A concurrent
	// duplicate insert fails with ErrDuplicateVote.
	ToggleVote(ctx context.Context, sub *entity.Submission, voterID string, pointsPerVote int) (VoteOutcome, error)
	// SetVote converges on the wanted state and reports no change when already there.
	SetVote(ctx context.Context, sub *entity.Submission, voterID string, pointsPerVote int, want bool) (VoteOutcome, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) CreateWithAward(ctx context.Context, sub *entity.Submission, award *entity.PointLog) (int, error) {
	var balance int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.ErrDuplicateEntry
			}
			return err
		}
		if award == nil {
			return nil
		}
		var err error
		balance, err = pointsRepo.WriteDelta(tx, award)
		return err
	})
	return balance, err
}

func (r *submissionRepository) find(ctx context.Context, query string, arg interface{}) (*entity.Submission, error) {
	var sub entity.Submission
	err := r.db.WithContext(ctx).Where(query, arg).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepository) FindByID(ctx context.Context, id uint) (*entity.Submission, error) {
	return r.find(ctx, "id = ?", id)
}

func (r *submissionRepository) FindByMessageID(ctx context.Context, messageID string) (*entity.Submission, error) {
	return r.find(ctx, "message_id = ?", messageID)
}

func (r *submissionRepository) ListByChallenge(ctx context.Context, challengeID uint) ([]entity.Submission, error) {
	var subs []entity.Submission
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("votes DESC, created_at ASC").
		Find(&subs).Error
	return subs, err
}

func (r *submissionRepository) UpdateContent(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&entity.Submission{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entity.Submission{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *submissionRepository) ToggleVote(ctx context.Context, sub *entity.Submission, voterID string, pointsPerVote int) (VoteOutcome, error) {
	var out VoteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err := deleteVote(tx, sub.ID, voterID)
		if err != nil {
			return err
		}
		if removed {
			out, err = applyVote(tx, sub, -1, pointsPerVote)
			return err
		}

		vote := entity.Vote{SubmissionID: sub.ID, UserID: voterID, GuildID: sub.GuildID}
		if err := tx.Create(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.ErrDuplicateVote
			}
			return err
		}
		out, err = applyVote(tx, sub, 1, pointsPerVote)
		return err
	})
	return out, err
}

func (r *submissionRepository) SetVote(ctx context.Context, sub *entity.Submission, voterID string, pointsPerVote int, want bool) (VoteOutcome, error) {
	var out VoteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !want {
			removed, err := deleteVote(tx, sub.ID, voterID)
			if err != nil || !removed {
				return err
			}
			out, err = applyVote(tx, sub, -1, pointsPerVote)
			return err
		}

		vote := entity.Vote{SubmissionID: sub.ID, UserID: voterID, GuildID: sub.GuildID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&vote)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		var err error
		out, err = applyVote(tx, sub, 1, pointsPerVote)
		return err
	})
	return out, err
}

func deleteVote(tx *gorm.DB, submissionID uint, voterID string) (bool, error) {
	res := tx.Where("submission_id = ? AND user_id = ?", submissionID, voterID).Delete(&entity.Vote{})
	return res.RowsAffected > 0, res.Error
}

// applyVote moves the cached count by direction and credits or debits the author.
func applyVote(tx *gorm.DB, sub *entity.Submission, direction, pointsPerVote int) (VoteOutcome, error) {
	out := VoteOutcome{Changed: true, Added: direction > 0}

	counted := entity.Submission{ID: sub.ID}
	err := tx.Model(&counted).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "votes"}}}).
		UpdateColumn("votes", gorm.Expr("votes + ?", direction)).Error
	if err != nil {
		return out, err
	}
	out.Votes = counted.Votes

	if pointsPerVote == 0 {
		return out, nil
	}
	out.Awarded = direction * pointsPerVote
	out.Balance, err = pointsRepo.WriteDelta(tx, &entity.PointLog{
		GuildID:   sub.GuildID,
		UserID:    sub.UserID,
		Amount:    out.Awarded,
		Reason:    entity.ReasonVoteReceived,
		RelatedID: entity.ChallengeRef(sub.ChallengeID),
	})
	return out, err
}
