package repository

import (
	"context"
	"time"

	"anoa.com/challengebot/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Standing is one row of a leaderboard query.
type Standing struct {
	UserID string
	Points int
}

// Contribution is what a member's balance is rebuilt from.
type Contribution struct {
	Submissions int64
	Votes       int64
}

// Drift is a member whose cached balance disagrees with the ledger sum.
type Drift struct {
	GuildID string
	UserID  string
	Balance int
	Ledger  int
}

type PointsRepository interface {
	// ApplyDelta writes the ledger entry and bumps the balance in one transaction
	// and returns the new balance.
	ApplyDelta(ctx context.Context, entry *entity.PointLog) (int, error)
	GetBalance(ctx context.Context, guildID, userID string) (int, bool, error)
	SetBalance(ctx context.Context, guildID, userID string, points int) error
	Contribution(ctx context.Context, guildID, userID string) (Contribution, error)
	TopBalances(ctx context.Context, guildID string, limit int) ([]Standing, error)
	TopSince(ctx context.Context, guildID string, since time.Time, limit int) ([]Standing, error)
	SumSince(ctx context.Context, guildID, userID string, since time.Time) (int, error)
	Rank(ctx context.Context, guildID, userID string) (rank, total int, found bool, err error)
	History(ctx context.Context, guildID, userID string, limit int) ([]entity.PointLog, error)
	RecentSubmissions(ctx context.Context, guildID, userID string, limit int) ([]entity.Submission, error)
	Drift(ctx context.Context) ([]Drift, error)
}

type pointsRepository struct {
	db *gorm.DB
}

func NewPointsRepository(db *gorm.DB) PointsRepository {
	return &pointsRepository{db: db}
}

// WriteDelta appends entry and increments the balance on tx. Callers that own a
// wider transaction (vote toggle, submission create) use it directly.
func WriteDelta(tx *gorm.DB, entry *entity.PointLog) (int, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := tx.Create(entry).Error; err != nil {
		return 0, err
	}

	balance := entity.Balance{
		GuildID:   entry.GuildID,
		UserID:    entry.UserID,
		Points:    entry.Amount,
		UpdatedAt: entry.CreatedAt,
	}
	err := tx.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"points":     gorm.Expr("balances.points + ?", entry.Amount),
				"updated_at": entry.CreatedAt,
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "points"}}},
	).Create(&balance).Error
	if err != nil {
		return 0, err
	}
	return balance.Points, nil
}

func (r *pointsRepository) ApplyDelta(ctx context.Context, entry *entity.PointLog) (int, error) {
	var points int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		points, err = WriteDelta(tx, entry)
		return err
	})
	return points, err
}

func (r *pointsRepository) GetBalance(ctx context.Context, guildID, userID string) (int, bool, error) {
	var balances []entity.Balance
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Limit(1).
		Find(&balances).Error
	if err != nil {
		return 0, false, err
	}
	if len(balances) == 0 {
		return 0, false, nil
	}
	return balances[0].Points, true, nil
}

// SetBalance overwrites the cached total without touching the ledger.
func (r *pointsRepository) SetBalance(ctx context.Context, guildID, userID string, points int) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"points", "updated_at"}),
	}).Create(&entity.Balance{
		GuildID:   guildID,
		UserID:    userID,
		Points:    points,
		UpdatedAt: time.Now().UTC(),
	}).Error
}

func (r *pointsRepository) Contribution(ctx context.Context, guildID, userID string) (Contribution, error) {
	var c Contribution
	err := r.db.WithContext(ctx).
		Model(&entity.Submission{}).
		Select("COUNT(*) AS submissions, COALESCE(SUM(votes), 0) AS votes").
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Scan(&c).Error
	return c, err
}

func (r *pointsRepository) TopBalances(ctx context.Context, guildID string, limit int) ([]Standing, error) {
	var out []Standing
	err := r.db.WithContext(ctx).
		Model(&entity.Balance{}).
		Select("user_id, points").
		Where("guild_id = ?", guildID).
		Order("points DESC, user_id ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// TopSince sums ledger entries created at or after since, dropping members whose
// windowed total is not positive.
func (r *pointsRepository) TopSince(ctx context.Context, guildID string, since time.Time, limit int) ([]Standing, error) {
	var out []Standing
	err := r.db.WithContext(ctx).
		Model(&entity.PointLog{}).
		Select("user_id, SUM(amount) AS points").
		Where("guild_id = ? AND created_at >= ?", guildID, since).
		Group("user_id").
		Having("SUM(amount) > 0").
		Order("points DESC, user_id ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *pointsRepository) SumSince(ctx context.Context, guildID, userID string, since time.Time) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&entity.PointLog{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("guild_id = ? AND user_id = ? AND created_at >= ?", guildID, userID, since).
		Scan(&total).Error
	return total, err
}

const rankQuery = `
SELECT ranked.position, ranked.total FROM (
	SELECT user_id,
		ROW_NUMBER() OVER (ORDER BY points DESC, user_id ASC) AS position,
		COUNT(*) OVER () AS total
	FROM balances
	WHERE guild_id = ?
) ranked
WHERE ranked.user_id = ?`

func (r *pointsRepository) Rank(ctx context.Context, guildID, userID string) (int, int, bool, error) {
	var rows []struct {
		Position int
		Total    int
	}
	if err := r.db.WithContext(ctx).Raw(rankQuery, guildID, userID).Scan(&rows).Error; err != nil {
		return 0, 0, false, err
	}
	if len(rows) == 0 {
		return 0, 0, false, nil
	}
	return rows[0].Position, rows[0].Total, true, nil
}

func (r *pointsRepository) History(ctx context.Context, guildID, userID string, limit int) ([]entity.PointLog, error) {
	var logs []entity.PointLog
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *pointsRepository) RecentSubmissions(ctx context.Context, guildID, userID string, limit int) ([]entity.Submission, error) {
	var subs []entity.Submission
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

const driftQuery = `
SELECT COALESCE(b.guild_id, l.guild_id) AS guild_id,
	COALESCE(b.user_id, l.user_id) AS user_id,
	COALESCE(b.points, 0) AS balance,
	COALESCE(l.total, 0) AS ledger
FROM balances b
FULL OUTER JOIN (
	SELECT guild_id, user_id, SUM(amount) AS total
	FROM point_logs
	GROUP BY guild_id, user_id
) l ON b.guild_id = l.guild_id AND b.user_id = l.user_id
WHERE COALESCE(b.points, 0) <> COALESCE(l.total, 0)`

func (r *pointsRepository) Drift(ctx context.Context) ([]Drift, error) {
	var out []Drift
	err := r.db.WithContext(ctx).Raw(driftQuery).Scan(&out).Error
	return out, err
}
