package http

import (
	"net/http"
	"strconv"

	searchService "anoa.com/challengebot/internal/modules/search/service"
	"anoa.com/challengebot/pkg/response"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	service searchService.SearchService
}

func NewSearchHandler(service searchService.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) SearchSubmissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(searchService.DefaultLimit)))

	res, err := h.service.Search(c.Request.Context(), c.Param("guild_id"), c.Query("q"), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
