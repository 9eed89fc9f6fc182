package handler

import (
	"doc-chat-go/internal/service"
	"doc-chat-go/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理对话相关的 API 请求。
type ChatHandler struct {
	chatService         service.ChatService
	conversationService service.ConversationService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService, conversationService service.ConversationService) *ChatHandler {
	return &ChatHandler{
		chatService:         chatService,
		conversationService: conversationService,
	}
}

// Start 创建一个新的空对话并返回对话 ID。
func (h *ChatHandler) Start(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conv, err := h.conversationService.Start(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("Start: Failed to create conversation for user %d, error: %v", user.ID, err)
		respondError(c, err)
		return
	}

	log.Infof("[ChatHandler] 对话创建成功, conversation: %s, user: %d", conv.ID, user.ID)
	respondOK(c, gin.H{"chatId": conv.ID})
}

// sendMessageJSON 定义了纯文本发送消息的 JSON 请求体结构。
type sendMessageJSON struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// SendMessage 处理发送消息请求。
// 同时支持两种请求体：带附件的 multipart/form-data 和纯文本的 JSON。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	in, cleanup, err := h.parseSendMessage(c)
	if err != nil {
		log.Warnf("SendMessage: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}
	defer cleanup()

	conv, err := h.chatService.SendMessage(c.Request.Context(), user, *in)
	if err != nil {
		log.Warnf("SendMessage: Failed for conversation '%s', user %d, error: %v", in.ConversationID, user.ID, err)
		respondError(c, err)
		return
	}

	respondOK(c, conv)
}

// parseSendMessage 按 Content-Type 解析请求体。
// 返回的 cleanup 负责关闭上传文件句柄并清理 multipart 临时文件。
func (h *ChatHandler) parseSendMessage(c *gin.Context) (*service.SendMessageInput, func(), error) {
	noop := func() {}

	if c.ContentType() != "multipart/form-data" {
		var req sendMessageJSON
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, noop, err
		}
		return &service.SendMessageInput{
			ConversationID: req.ChatID,
			Message:        req.Message,
		}, noop, nil
	}

	in := &service.SendMessageInput{
		ConversationID: c.PostForm("chatId"),
		Message:        c.PostForm("message"),
	}
	cleanup := func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}

	fileHeader, err := c.FormFile("file")
	if err == http.ErrMissingFile {
		return in, cleanup, nil
	}
	if err != nil {
		return nil, cleanup, err
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, cleanup, err
	}
	in.File = &service.IncomingFile{
		Name:      fileHeader.Filename,
		MediaType: fileHeader.Header.Get("Content-Type"),
		Size:      fileHeader.Size,
		Reader:    f,
	}
	return in, func() {
		f.Close()
		cleanup()
	}, nil
}

// Get 返回指定对话的完整轮次列表。
func (h *ChatHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	chatID := c.Param("chatId")

	conv, err := h.conversationService.Get(c.Request.Context(), chatID, user.ID)
	if err != nil {
		log.Warnf("Get: Failed for conversation '%s', user %d, error: %v", chatID, user.ID, err)
		respondError(c, err)
		return
	}
	respondOK(c, conv)
}

// List 返回当前用户的对话列表（摘要视图）。
func (h *ChatHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	previews, err := h.conversationService.List(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("List: Failed for user %d, error: %v", user.ID, err)
		respondError(c, err)
		return
	}
	respondOK(c, previews)
}

// Stats 返回当前用户的对话统计信息。
func (h *ChatHandler) Stats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.conversationService.Stats(c.Request.Context(), user.ID)
	if err != nil {
		log.Errorf("Stats: Failed for user %d, error: %v", user.ID, err)
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}
