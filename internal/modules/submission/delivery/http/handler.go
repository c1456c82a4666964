package http

import (
	"fmt"
	"net/http"
	"strconv"

	submissionDto "anoa.com/challengebot/internal/modules/submission/dto"
	submissionService "anoa.com/challengebot/internal/modules/submission/service"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/response"
	"anoa.com/challengebot/pkg/validator"
	"github.com/gin-gonic/gin"
)

type SubmissionHandler struct {
	service submissionService.SubmissionService
}

func NewSubmissionHandler(service submissionService.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("invalid id %q: %w", c.Param("id"), apperror.ErrInvalidInput))
		return 0, false
	}
	return uint(id), true
}

// ListByChallenge handles GET /challenges/:id/submissions.
func (h *SubmissionHandler) ListByChallenge(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	subs, err := h.service.ListByChallenge(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, subs)
}

func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sub, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

// Vote toggles the caller's vote.
func (h *SubmissionHandler) Vote(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.service.CastVote(c.Request.Context(), id, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *SubmissionHandler) EditSubmission(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req submissionDto.EditSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	sub, err := h.service.Edit(c.Request.Context(), id, userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

func (h *SubmissionHandler) DeleteSubmission(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
