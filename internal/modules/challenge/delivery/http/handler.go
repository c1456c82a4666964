package http

import (
	"fmt"
	"net/http"
	"strconv"

	challengeDto "anoa.com/challengebot/internal/modules/challenge/dto"
	challengeService "anoa.com/challengebot/internal/modules/challenge/service"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/response"
	"anoa.com/challengebot/pkg/validator"
	"github.com/gin-gonic/gin"
)

type ChallengeHandler struct {
	service challengeService.ChallengeService
}

func NewChallengeHandler(service challengeService.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{service: service}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("invalid id %q: %w", c.Param("id"), apperror.ErrInvalidInput))
		return 0, false
	}
	return uint(id), true
}

func (h *ChallengeHandler) ListChallenges(c *gin.Context) {
	guildID := c.Param("guild_id")
	ctx := c.Request.Context()

	if c.Query("templates") == "true" {
		templates, err := h.service.ListTemplates(ctx, guildID)
		if err != nil {
			response.ResponseError(c, err)
			return
		}
		response.Success(c, http.StatusOK, templates)
		return
	}

	challenges, err := h.service.ListActive(ctx, guildID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req challengeDto.CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	challenge, err := h.service.Create(c.Request.Context(), c.Param("guild_id"), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, challenge)
}

func (h *ChallengeHandler) CloseChallenge(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	challenge, err := h.service.Close(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, challenge)
}

func (h *ChallengeHandler) PickWinner(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req challengeDto.PickWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	res, err := h.service.PickWinner(c.Request.Context(), id, userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *ChallengeHandler) DeleteChallenge(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reverse := c.Query("reverse_points") == "true"

	reversals, err := h.service.Delete(c.Request.Context(), id, reverse)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"deleted":          id,
		"reverse_points":   reverse,
		"members_reversed": len(reversals),
	})
}

func (h *ChallengeHandler) CancelTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.CancelTemplate(c.Request.Context(), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": id})
}
