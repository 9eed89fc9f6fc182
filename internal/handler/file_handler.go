package handler

import (
	"doc-chat-go/internal/service"
	"doc-chat-go/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FileHandler 负责处理附件上传、下载与删除相关的 API 请求。
type FileHandler struct {
	fileService service.FileService
}

// NewFileHandler 创建一个新的 FileHandler 实例。
func NewFileHandler(fileService service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Upload 处理附件上传请求。请求体为 multipart/form-data，
// 必须携带 chatId 表单字段和 file 文件字段。
func (h *FileHandler) Upload(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conversationID := c.PostForm("chatId")
	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warnf("Upload: Missing file in request, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请求中缺少文件",
		})
		return
	}
	defer func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}()

	f, err := fileHeader.Open()
	if err != nil {
		log.Errorf("Upload: Failed to open uploaded file, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}
	defer f.Close()

	record, err := h.fileService.Upload(c.Request.Context(), user, conversationID, &service.IncomingFile{
		Name:      fileHeader.Filename,
		MediaType: fileHeader.Header.Get("Content-Type"),
		Size:      fileHeader.Size,
		Reader:    f,
	})
	if err != nil {
		log.Warnf("Upload: Failed for user %d, conversation '%s', error: %v", user.ID, conversationID, err)
		respondError(c, err)
		return
	}

	respondOK(c, record)
}

// Download 为指定附件生成预签名下载链接。
func (h *FileHandler) Download(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	fileID := c.Param("fileId")

	record, url, err := h.fileService.DownloadURL(c.Request.Context(), user.ID, fileID)
	if err != nil {
		log.Warnf("Download: Failed for file '%s', user %d, error: %v", fileID, user.ID, err)
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"fileName":    record.OriginalName,
		"downloadUrl": url,
	})
}

// Delete 删除指定附件。只影响附件本身，不会触碰对话轮次。
func (h *FileHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	fileID := c.Param("fileId")

	if err := h.fileService.Delete(c.Request.Context(), user.ID, fileID); err != nil {
		log.Warnf("Delete: Failed for file '%s', user %d, error: %v", fileID, user.ID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文件删除成功",
	})
}

// ListByChat 返回绑定到某对话的全部附件。
func (h *FileHandler) ListByChat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	chatID := c.Param("chatId")

	records, err := h.fileService.ListByConversation(c.Request.Context(), user.ID, chatID)
	if err != nil {
		log.Warnf("ListByChat: Failed for conversation '%s', user %d, error: %v", chatID, user.ID, err)
		respondError(c, err)
		return
	}
	respondOK(c, records)
}
