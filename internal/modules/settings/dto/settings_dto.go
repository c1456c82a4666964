package dto

// UpdateSettingsRequest is a partial update; nil fields keep their stored value.
type UpdateSettingsRequest struct {
	PointsPerSubmission *int    `json:"points_per_submission" binding:"omitempty,min=0,max=10000"`
	PointsPerVote       *int    `json:"points_per_vote" binding:"omitempty,min=0,max=10000"`
	VoteEmoji           *string `json:"vote_emoji" binding:"omitempty,min=1,max=64"`
}

func (r UpdateSettingsRequest) Empty() bool {
	return r.PointsPerSubmission == nil && r.PointsPerVote == nil && r.VoteEmoji == nil
}
