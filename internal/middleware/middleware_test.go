package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/internal/platform/platformtest"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signed(t *testing.T, subject string, expires time.Time, key string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	s, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func newRouter(m *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	authed := r.Group("", m.RequireAuth())
	authed.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	authed.POST("/guilds/:guild_id/admin", m.RequireAdmin(GuildParam), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("guild_id"))
	})
	return r
}

func do(r *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newRouter(NewAuthMiddleware(platformtest.New(), secret))

	w := do(r, http.MethodGet, "/me", signed(t, "U1", time.Now().Add(time.Hour), secret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "U1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", signed(t, "U1", time.Now().Add(-time.Minute), secret)).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", signed(t, "U1", time.Now().Add(time.Hour), "other")).Code)
}

func TestRequireAuthQueryToken(t *testing.T) {
	r := newRouter(NewAuthMiddleware(platformtest.New(), secret))

	w := do(r, http.MethodGet, "/me?token="+signed(t, "U2", time.Now().Add(time.Hour), secret), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "U2", w.Body.String())
}

func TestRequireAdminAsksPlatform(t *testing.T) {
	rec := platformtest.New()
	rec.Admins["G/mod"] = true
	r := newRouter(NewAuthMiddleware(rec, secret))

	w := do(r, http.MethodPost, "/guilds/G/admin", signed(t, "mod", time.Now().Add(time.Hour), secret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "G", w.Body.String())

	w = do(r, http.MethodPost, "/guilds/OTHER/admin", signed(t, "mod", time.Now().Add(time.Hour), secret))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/guilds/G/admin", signed(t, "member", time.Now().Add(time.Hour), secret))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdminUnknownMember(t *testing.T) {
	rec := platformtest.New()
	rec.Fail["IsAdmin"] = platform.ErrNotFound
	r := newRouter(NewAuthMiddleware(rec, secret))

	w := do(r, http.MethodPost, "/guilds/G/admin", signed(t, "ghost", time.Now().Add(time.Hour), secret))
	assert.Equal(t, http.StatusForbidden, w.Code)

	rec.Fail["IsAdmin"] = errors.New("gateway timeout")
	w = do(r, http.MethodPost, "/guilds/G/admin", signed(t, "ghost", time.Now().Add(time.Hour), secret))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestID(t *testing.T) {
	r := newRouter(NewAuthMiddleware(platformtest.New(), secret))

	w := do(r, http.MethodGet, "/me", "")
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))
}
