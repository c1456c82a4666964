package entity

import "time"

const (
	DefaultPointsPerSubmission = 1
	DefaultPointsPerVote       = 1
	DefaultVoteEmoji           = "👍"
)

type GuildSettings struct {
	GuildID             string    `gorm:"size:32;primaryKey" json:"guild_id"`
	PointsPerSubmission int       `gorm:"not null" json:"points_per_submission"`
	PointsPerVote       int       `gorm:"not null" json:"points_per_vote"`
	VoteEmoji           string    `gorm:"size:64;not null" json:"vote_emoji"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GuildSettings) TableName() string {
	return "guild_settings"
}

func DefaultSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:             guildID,
		PointsPerSubmission: DefaultPointsPerSubmission,
		PointsPerVote:       DefaultPointsPerVote,
		VoteEmoji:           DefaultVoteEmoji,
	}
}

type BadgeRole struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	GuildID        string    `gorm:"size:32;not null;uniqueIndex:idx_badge_roles_guild_role,priority:1" json:"guild_id"`
	RoleID         string    `gorm:"size:32;not null;uniqueIndex:idx_badge_roles_guild_role,priority:2" json:"role_id"`
	PointsRequired int       `gorm:"not null" json:"points_required"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (BadgeRole) TableName() string {
	return "badge_roles"
}
