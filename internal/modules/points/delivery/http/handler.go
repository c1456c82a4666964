package http

import (
	"fmt"
	"net/http"
	"strconv"

	pointsDto "anoa.com/challengebot/internal/modules/points/dto"
	pointsService "anoa.com/challengebot/internal/modules/points/service"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/response"
	"anoa.com/challengebot/pkg/validator"
	"github.com/gin-gonic/gin"
)

const defaultPageLimit = 50

type PointsHandler struct {
	service pointsService.PointsService
}

func NewPointsHandler(service pointsService.PointsService) *PointsHandler {
	return &PointsHandler{service: service}
}

func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	return limit
}

func (h *PointsHandler) GetLeaderboard(c *gin.Context) {
	period := pointsService.ParsePeriod(c.Query("period"))
	entries, err := h.service.GetLeaderboard(c.Request.Context(), c.Param("guild_id"), queryLimit(c, defaultPageLimit), period)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"period": period, "entries": entries})
}

func (h *PointsHandler) GetProfile(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), c.Param("guild_id"), c.Param("user_id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

func (h *PointsHandler) GetHistory(c *gin.Context) {
	logs, err := h.service.History(c.Request.Context(), c.Param("guild_id"), c.Param("user_id"), queryLimit(c, pointsService.HistoryLimit))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, logs)
}

func (h *PointsHandler) AdjustPoints(c *gin.Context) {
	operatorID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req pointsDto.AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	balance, err := h.service.AdminAdjust(c.Request.Context(), c.Param("guild_id"), req.UserID, operatorID, req.Amount)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, pointsDto.BalanceResponse{UserID: req.UserID, Balance: balance})
}

func (h *PointsHandler) Recalculate(c *gin.Context) {
	userID := c.Param("user_id")
	balance, err := h.service.Recalculate(c.Request.Context(), c.Param("guild_id"), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, pointsDto.BalanceResponse{UserID: userID, Balance: balance})
}
