package http

import (
	"net/http"

	pointsService "anoa.com/challengebot/internal/modules/points/service"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/cache"
	"anoa.com/challengebot/pkg/logger"
	"anoa.com/challengebot/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FeedHandler streams a guild's balance changes to dashboard clients.
type FeedHandler struct {
	cache    *cache.Cache
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewFeedHandler(c *cache.Cache, allowedOrigins []string) *FeedHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &FeedHandler{
		cache: c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		log: logger.WithComponent("feed"),
	}
}

func (h *FeedHandler) HandleWebSocket(c *gin.Context) {
	if !h.cache.Enabled() {
		response.ResponseError(c, apperror.New(http.StatusServiceUnavailable, "live feed requires redis", nil))
		return
	}

	guildID := c.Param("guild_id")
	ctx := c.Request.Context()

	pubsub, err := h.cache.Subscribe(ctx, pointsService.FeedChannel(guildID))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer pubsub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			// payload is already a JSON feed event
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.log.Debug("websocket write failed", zap.String("guild_id", guildID), zap.Error(err))
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}
