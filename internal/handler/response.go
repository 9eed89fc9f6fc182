// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/model"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError 把业务错误映射为统一的 JSON 响应。
// 响应体里只出现对外的原因描述，底层错误细节由调用方记日志。
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	c.JSON(status, gin.H{
		"code":    status,
		"message": apperr.ReasonOf(err),
	})
}

// respondOK 返回带 data 的成功响应。
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    data,
	})
}

// currentUser 取出 AuthMiddleware 注入的 User 对象。
func currentUser(c *gin.Context) (*model.User, bool) {
	userValue, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息"})
		return nil, false
	}
	user, ok := userValue.(*model.User)
	if !ok || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "用户数据类型错误"})
		return nil, false
	}
	return user, true
}
