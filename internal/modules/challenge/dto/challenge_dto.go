package dto

import (
	"time"

	"anoa.com/challengebot/internal/entity"
)

// CreateChallengeRequest creates a one-time challenge, or a recurring template
// when CronSchedule is set.
type CreateChallengeRequest struct {
	Title        string     `json:"title" binding:"required,max=200"`
	Description  string     `json:"description" binding:"max=4000"`
	Type         string     `json:"type" binding:"required,max=50"`
	ChannelID    string     `json:"channel_id" binding:"required,numeric"`
	CronSchedule *string    `json:"cron_schedule" binding:"omitempty,cron"`
	StartsAt     *time.Time `json:"starts_at"`
	EndsAt       *time.Time `json:"ends_at"`
}

type PickWinnerRequest struct {
	UserID       string `json:"user_id" binding:"required,numeric"`
	BonusPoints  int    `json:"bonus_points" binding:"required,min=1,max=100000"`
	Announcement string `json:"announcement" binding:"max=1024"`
}

type ChallengeDetail struct {
	entity.Challenge
	SubmissionCount int64 `json:"submission_count"`
}

type WinnerResponse struct {
	ChallengeID uint   `json:"challenge_id"`
	UserID      string `json:"user_id"`
	Balance     int    `json:"balance"`
}
