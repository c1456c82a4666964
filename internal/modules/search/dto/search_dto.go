package dto

// SubmissionHit is one search result.
type SubmissionHit struct {
	ID          uint   `json:"id"`
	ChallengeID uint   `json:"challenge_id"`
	GuildID     string `json:"guild_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Content     string `json:"content"`
	LinkURL     string `json:"link_url,omitempty"`
	Votes       int    `json:"votes"`
	CreatedAt   int64  `json:"created_at"`
}

type SearchResponse struct {
	Query string          `json:"query"`
	Total int64           `json:"total"`
	Hits  []SubmissionHit `json:"hits"`
}
