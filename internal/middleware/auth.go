package middleware

import (
	"errors"
	"fmt"
	"strings"

	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/logger"
	"anoa.com/challengebot/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// GuildResolver finds the guild a request acts on, from a path param or from
// the record it addresses.
type GuildResolver func(c *gin.Context) (string, error)

// GuildParam resolves the guild from the :guild_id path param.
func GuildParam(c *gin.Context) (string, error) {
	guildID := c.Param("guild_id")
	if guildID == "" {
		return "", fmt.Errorf("guild_id is required: %w", apperror.ErrInvalidInput)
	}
	return guildID, nil
}

type AuthMiddleware struct {
	platform platform.Platform
	secret   []byte
	log      *zap.Logger
}

func NewAuthMiddleware(p platform.Platform, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		platform: p,
		secret:   []byte(secret),
		log:      logger.WithComponent("auth"),
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Fallback to query parameter "token" (useful for WebSockets)
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			abort(c, fmt.Errorf("authorization required: %w", apperror.ErrUnauthorized))
			return
		}

		userID, err := m.parse(tokenString)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func (m *AuthMiddleware) parse(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token: %w", apperror.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims: %w", apperror.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// RequireAdmin asks the chat platform whether the caller administers the
// guild the request targets. Nothing the client sends is trusted for this.
func (m *AuthMiddleware) RequireAdmin(resolve GuildResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			abort(c, err)
			return
		}

		guildID, err := resolve(c)
		if err != nil {
			abort(c, err)
			return
		}

		ok, err := m.platform.IsAdmin(c.Request.Context(), guildID, userID)
		if err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				abort(c, fmt.Errorf("not a member of this guild: %w", apperror.ErrForbidden))
				return
			}
			m.log.Error("admin check failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
			abort(c, err)
			return
		}
		if !ok {
			abort(c, fmt.Errorf("admin access required: %w", apperror.ErrForbidden))
			return
		}

		c.Set("guild_id", guildID)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	response.ResponseError(c, err)
	c.Abort()
}
