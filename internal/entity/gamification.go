package entity

import (
	"time"

	"anoa.com/challengebot/pkg/apperror"
)

// Reason is the closed set of causes a ledger entry may carry.
type Reason string

const (
	ReasonSubmission        Reason = "SUBMISSION"
	ReasonVoteReceived      Reason = "VOTE_RECEIVED"
	ReasonWinnerBonus       Reason = "WINNER_BONUS"
	ReasonAdminAdd          Reason = "ADMIN_ADD"
	ReasonAdminRemove       Reason = "ADMIN_REMOVE"
	ReasonSubmissionDeleted Reason = "SUBMISSION_DELETED"
)

var reasons = map[Reason]struct{}{
	ReasonSubmission:        {},
	ReasonVoteReceived:      {},
	ReasonWinnerBonus:       {},
	ReasonAdminAdd:          {},
	ReasonAdminRemove:       {},
	ReasonSubmissionDeleted: {},
}

func (r Reason) Valid() bool {
	_, ok := reasons[r]
	return ok
}

func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if !r.Valid() {
		return "", apperror.ErrInvalidReason
	}
	return r, nil
}

// PointLog is one immutable ledger row. Every balance change writes exactly one.
type PointLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GuildID    string    `gorm:"size:32;not null;index:idx_point_logs_guild_created,priority:1;index:idx_point_logs_guild_user,priority:1" json:"guild_id"`
	UserID     string    `gorm:"size:32;not null;index:idx_point_logs_guild_user,priority:2" json:"user_id"`
	Amount     int       `gorm:"not null" json:"amount"`
	Reason     Reason    `gorm:"size:32;not null" json:"reason"`
	RelatedID  *string   `gorm:"size:64;index" json:"related_id,omitempty"`
	OperatorID *string   `gorm:"size:32" json:"operator_id,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index:idx_point_logs_guild_created,priority:2,sort:desc" json:"created_at"`
}

func (PointLog) TableName() string {
	return "point_logs"
}

// Balance is the cached running total per guild member, derived from point_logs.
type Balance struct {
	GuildID   string    `gorm:"size:32;primaryKey" json:"guild_id"`
	UserID    string    `gorm:"size:32;primaryKey" json:"user_id"`
	Points    int       `gorm:"not null;index" json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Balance) TableName() string {
	return "balances"
}
