// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/repository"
	"errors"
	"time"

	"gorm.io/gorm"
)

// previewMaxRunes 是列表预览文本的最大长度（按字符计）。
const previewMaxRunes = 100

// recentActivityCount 是统计视图中返回的最近对话条数。
const recentActivityCount = 5

// ConversationPreview 是对话的轻量列表投影，不携带完整轮次。
type ConversationPreview struct {
	ID               string          `json:"id"`
	MessageCount     int             `json:"messageCount"`
	Preview          string          `json:"preview"`
	LastActivityTime model.LocalTime `json:"lastActivityTime"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// OwnerStats 是单个用户的对话聚合统计。
type OwnerStats struct {
	TotalConversations int                   `json:"totalConversations"`
	TotalTurns         int                   `json:"totalTurns"`
	RecentActivity     []ConversationPreview `json:"recentActivity"`
}

// ConversationService 定义了对话读写的业务接口。
// List 与 Stats 是纯投影，每次请求基于存储即时重算，没有独立的写路径。
type ConversationService interface {
	Start(ctx context.Context, ownerID uint) (*model.Conversation, error)
	Get(ctx context.Context, id string, ownerID uint) (*model.Conversation, error)
	List(ctx context.Context, ownerID uint) ([]ConversationPreview, error)
	Stats(ctx context.Context, ownerID uint) (*OwnerStats, error)
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// Start 为用户创建一个零轮次的新对话。
func (s *conversationService) Start(ctx context.Context, ownerID uint) (*model.Conversation, error) {
	conv, err := s.repo.Create(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "创建对话失败", err)
	}
	return conv, nil
}

// Get 加载用户自己的一个对话的完整轮次。
func (s *conversationService) Get(ctx context.Context, id string, ownerID uint) (*model.Conversation, error) {
	conv, err := s.repo.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "对话不存在或无权访问")
		}
		return nil, apperr.Wrap(apperr.Persistence, "加载对话失败", err)
	}
	return conv, nil
}

// List 返回用户全部对话的预览，按最近更新排序。
func (s *conversationService) List(ctx context.Context, ownerID uint) ([]ConversationPreview, error) {
	convs, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "加载对话列表失败", err)
	}
	previews := make([]ConversationPreview, 0, len(convs))
	for i := range convs {
		previews = append(previews, buildPreview(&convs[i]))
	}
	return previews, nil
}

// Stats 返回用户的对话聚合统计（总量与最近活动）。
func (s *conversationService) Stats(ctx context.Context, ownerID uint) (*OwnerStats, error) {
	previews, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	totalTurns := 0
	for _, p := range previews {
		totalTurns += p.MessageCount
	}

	recent := previews
	if len(recent) > recentActivityCount {
		recent = recent[:recentActivityCount]
	}

	return &OwnerStats{
		TotalConversations: len(previews),
		TotalTurns:         totalTurns,
		RecentActivity:     recent,
	}, nil
}

// buildPreview 从完整对话构造列表投影。
func buildPreview(conv *model.Conversation) ConversationPreview {
	preview := ""
	lastActivity := conv.CreatedAt
	if n := len(conv.Turns); n > 0 {
		last := conv.Turns[n-1]
		preview = truncateRunes(last.Content, previewMaxRunes)
		lastActivity = last.Timestamp
	}
	return ConversationPreview{
		ID:               conv.ID,
		MessageCount:     len(conv.Turns),
		Preview:          preview,
		LastActivityTime: model.LocalTime(lastActivity),
		CreatedAt:        conv.CreatedAt,
		UpdatedAt:        conv.UpdatedAt,
	}
}

// truncateRunes 按字符截断文本，避免把多字节字符截成乱码。
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
