package response

import (
	"net/http"

	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetUserID retrieves the authenticated platform user id from the context
func GetUserID(c *gin.Context) (string, error) {
	userID := c.GetString("user_id")
	if userID == "" {
		return "", apperror.ErrUnauthorized
	}
	return userID, nil
}

func Success(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{"success": true, "data": data})
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.WithComponent("http").Error("internal error",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		msg = "internal server error"
	}

	c.JSON(code, gin.H{"success": false, "error": msg})
}
