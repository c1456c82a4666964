package http

import (
	"fmt"
	"net/http"

	settingsDto "anoa.com/challengebot/internal/modules/settings/dto"
	settingsService "anoa.com/challengebot/internal/modules/settings/service"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/response"
	"anoa.com/challengebot/pkg/validator"
	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	service settingsService.SettingsService
}

func NewSettingsHandler(service settingsService.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context(), c.Param("guild_id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req settingsDto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	settings, err := h.service.Update(c.Request.Context(), c.Param("guild_id"), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}
