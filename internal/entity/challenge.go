package entity

import (
	"strconv"
	"time"
)

type Challenge struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	GuildID      string       `gorm:"size:32;not null;index:idx_challenges_guild_active,priority:1" json:"guild_id"`
	Title        string       `gorm:"size:200;not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description"`
	Type         string       `gorm:"size:50;not null" json:"type"`
	CreatedBy    string       `gorm:"size:32;not null" json:"created_by"`
	StartsAt     *time.Time   `json:"starts_at,omitempty"`
	EndsAt       *time.Time   `json:"ends_at,omitempty"`
	ChannelID    *string      `gorm:"size:32" json:"channel_id,omitempty"`
	MessageID    *string      `gorm:"size:32" json:"message_id,omitempty"`
	ThreadID     *string      `gorm:"size:32" json:"thread_id,omitempty"`
	IsActive     bool         `gorm:"not null;index:idx_challenges_guild_active,priority:2" json:"is_active"`
	IsTemplate   bool         `gorm:"not null;index" json:"is_template"`
	CronSchedule *string      `gorm:"size:100" json:"cron_schedule,omitempty"`
	Submissions  []Submission `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// ChallengeRef is the related_id ledger entries carry for a challenge.
func ChallengeRef(id uint) *string {
	ref := strconv.FormatUint(uint64(id), 10)
	return &ref
}

type Submission struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ChallengeID   uint      `gorm:"not null;index" json:"challenge_id"`
	GuildID       string    `gorm:"size:32;not null;index:idx_submissions_guild_user,priority:1" json:"guild_id"`
	UserID        string    `gorm:"size:32;not null;index:idx_submissions_guild_user,priority:2" json:"user_id"`
	Username      string    `gorm:"size:100" json:"username"`
	ChannelID     *string   `gorm:"size:32" json:"channel_id,omitempty"`
	MessageID     *string   `gorm:"size:32;uniqueIndex" json:"message_id,omitempty"`
	ThreadID      *string   `gorm:"size:32" json:"thread_id,omitempty"`
	ContentText   *string   `gorm:"type:text" json:"content_text,omitempty"`
	AttachmentURL *string   `gorm:"type:text" json:"attachment_url,omitempty"`
	LinkURL       *string   `gorm:"type:text" json:"link_url,omitempty"`
	Votes         int       `gorm:"not null" json:"votes"`
	VoteRecords   []Vote    `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

// HasContent reports whether at least one content field is non-empty.
func (s *Submission) HasContent() bool {
	for _, p := range []*string{s.ContentText, s.AttachmentURL, s.LinkURL} {
		if p != nil && *p != "" {
			return true
		}
	}
	return false
}
