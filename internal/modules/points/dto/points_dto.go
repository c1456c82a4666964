package dto

import (
	"time"

	"anoa.com/challengebot/internal/entity"
)

// LeaderboardEntry is one ranked member. Position is 1-based.
type LeaderboardEntry struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
	Points   int    `json:"points"`
}

type RankResult struct {
	Rank  int `json:"rank"`
	Total int `json:"total"`
}

type ProfileResponse struct {
	GuildID           string              `json:"guild_id"`
	UserID            string              `json:"user_id"`
	Points            int                 `json:"points"`
	Rank              *RankResult         `json:"rank,omitempty"`
	WeeklyPoints      int                 `json:"weekly_points"`
	MonthlyPoints     int                 `json:"monthly_points"`
	RecentSubmissions []entity.Submission `json:"recent_submissions"`
}

type AdjustPointsRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int    `json:"amount" binding:"required,min=-100000,max=100000"`
}

type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int    `json:"balance"`
}

// FeedEvent is published for every committed balance change.
type FeedEvent struct {
	GuildID string        `json:"guild_id"`
	UserID  string        `json:"user_id"`
	Amount  int           `json:"amount"`
	Reason  entity.Reason `json:"reason,omitempty"`
	Balance int           `json:"balance"`
	At      time.Time     `json:"at"`
}
