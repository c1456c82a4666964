package dto

type CreateBadgeRequest struct {
	RoleID         string `json:"role_id" binding:"required,numeric"`
	PointsRequired int    `json:"points_required" binding:"min=0"`
}
