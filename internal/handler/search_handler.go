package handler

import (
	"doc-chat-go/internal/service"
	"doc-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理轮次检索相关的 API 请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 在当前用户的已提交轮次中做关键字检索。
// 查询参数 q 为检索关键字。索引为异步写入，结果可能有秒级延迟。
func (h *SearchHandler) Search(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	keyword := c.Query("q")

	hits, err := h.searchService.Search(c.Request.Context(), user.ID, keyword)
	if err != nil {
		log.Warnf("Search: Failed for user %d, keyword '%s', error: %v", user.ID, keyword, err)
		respondError(c, err)
		return
	}
	respondOK(c, hits)
}
