package http

import (
	"fmt"
	"net/http"
	"strconv"

	badgeDto "anoa.com/challengebot/internal/modules/badge/dto"
	badgeService "anoa.com/challengebot/internal/modules/badge/service"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/response"
	"anoa.com/challengebot/pkg/validator"
	"github.com/gin-gonic/gin"
)

type BadgeHandler struct {
	service badgeService.BadgeService
}

func NewBadgeHandler(service badgeService.BadgeService) *BadgeHandler {
	return &BadgeHandler{service: service}
}

func (h *BadgeHandler) ListBadges(c *gin.Context) {
	badges, err := h.service.List(c.Request.Context(), c.Param("guild_id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, badges)
}

func (h *BadgeHandler) CreateBadge(c *gin.Context) {
	var req badgeDto.CreateBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	badge, err := h.service.Add(c.Request.Context(), c.Param("guild_id"), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, badge)
}

func (h *BadgeHandler) DeleteBadge(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("invalid badge id: %w", apperror.ErrInvalidInput))
		return
	}

	if err := h.service.Remove(c.Request.Context(), c.Param("guild_id"), uint(id)); err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}
