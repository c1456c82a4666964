package dto

// SubmitInput is a new entry coming from the command layer.
type SubmitInput struct {
	GuildID       string
	ChallengeID   uint
	UserID        string
	Username      string
	Text          string
	AttachmentURL string
	LinkURL       string
	// ImageAttachment shows the attachment inline instead of as a link.
	ImageAttachment bool
}

// EditSubmissionRequest is a partial update; a nil field is left as is and an
// empty string clears it.
type EditSubmissionRequest struct {
	ContentText   *string `json:"content_text" binding:"omitempty,max=4000"`
	AttachmentURL *string `json:"attachment_url" binding:"omitempty,max=2000"`
	LinkURL       *string `json:"link_url" binding:"omitempty,max=2000"`
}

func (r EditSubmissionRequest) Empty() bool {
	return r.ContentText == nil && r.AttachmentURL == nil && r.LinkURL == nil
}

type VoteAction string

const (
	VoteAdded   VoteAction = "added"
	VoteRemoved VoteAction = "removed"
	VoteNoop    VoteAction = "unchanged"
)

type VoteResult struct {
	SubmissionID uint       `json:"submission_id"`
	Action       VoteAction `json:"action"`
	Votes        int        `json:"votes"`
}
