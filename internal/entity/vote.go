package entity

import "time"

// Vote is one member's vote on one submission. The composite primary key is
// what stops a second vote from the same member.
type Vote struct {
	SubmissionID uint      `gorm:"primaryKey;autoIncrement:false" json:"submission_id"`
	UserID       string    `gorm:"size:32;primaryKey" json:"user_id"`
	GuildID      string    `gorm:"size:32;not null;index" json:"guild_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Vote) TableName() string {
	return "submission_votes"
}
