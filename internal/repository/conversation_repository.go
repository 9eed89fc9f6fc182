// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"doc-chat-go/internal/model"
	"doc-chat-go/pkg/log"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// transcriptCacheTTL 是 Redis 中对话缓存的保留时长。
const transcriptCacheTTL = 7 * 24 * time.Hour

// ConversationRepository 定义了对话（含完整轮次序列）的持久化操作接口。
// 轮次序列只能通过 AppendTurn / RemoveLastTurn 变更，两者都会做防御性校验：
// 追加必须保持 user/assistant 交替，回滚只允许删除尾部的 user 轮次。
type ConversationRepository interface {
	Create(ctx context.Context, ownerID uint) (*model.Conversation, error)
	// FindByIDAndOwner 在对话不存在与不属于该用户两种情况下返回同一个错误
	// （gorm.ErrRecordNotFound），避免向非所有者泄露对话是否存在。
	FindByIDAndOwner(ctx context.Context, id string, ownerID uint) (*model.Conversation, error)
	AppendTurn(ctx context.Context, id string, turn model.Turn) (*model.Conversation, error)
	RemoveLastTurn(ctx context.Context, id string) (*model.Conversation, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]model.Conversation, error)
}

type conversationRepository struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB, redisClient *redis.Client) ConversationRepository {
	return &conversationRepository{db: db, redisClient: redisClient}
}

// Create 创建一个零轮次的新对话。
func (r *conversationRepository) Create(ctx context.Context, ownerID uint) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Turns:   model.TurnList{},
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	r.refreshCache(ctx, conv)
	return conv, nil
}

// FindByIDAndOwner 加载指定用户拥有的对话，优先命中 Redis 缓存。
func (r *conversationRepository) FindByIDAndOwner(ctx context.Context, id string, ownerID uint) (*model.Conversation, error) {
	if conv, ok := r.fromCache(ctx, id); ok {
		if conv.OwnerID != ownerID {
			// 与不存在同错误类别，不泄露对话归属
			return nil, gorm.ErrRecordNotFound
		}
		return conv, nil
	}

	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&conv).Error
	if err != nil {
		return nil, err
	}
	r.refreshCache(ctx, &conv)
	return &conv, nil
}

// AppendTurn 在对话尾部追加一条轮次并刷新 updatedAt。
// 追加前校验交替不变式；正确的编排下该校验不应触发。
func (r *conversationRepository) AppendTurn(ctx context.Context, id string, turn model.Turn) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		r.invalidateCache(ctx, id)
		return nil, err
	}

	if err := conv.Turns.CheckAppend(turn.Role); err != nil {
		return nil, fmt.Errorf("追加轮次被拒绝: %w", err)
	}

	conv.Turns = append(conv.Turns, turn)
	if err := r.db.WithContext(ctx).Save(&conv).Error; err != nil {
		r.invalidateCache(ctx, id)
		return nil, err
	}
	r.refreshCache(ctx, &conv)
	return &conv, nil
}

// RemoveLastTurn 删除尾部轮次，仅用于回滚。
// 尾部不是 user 轮次时拒绝执行。
func (r *conversationRepository) RemoveLastTurn(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		r.invalidateCache(ctx, id)
		return nil, err
	}

	n := len(conv.Turns)
	if n == 0 || conv.Turns[n-1].Role != model.RoleUser {
		return nil, model.ErrLastTurnNotUser
	}

	conv.Turns = conv.Turns[:n-1]
	if err := r.db.WithContext(ctx).Save(&conv).Error; err != nil {
		r.invalidateCache(ctx, id)
		return nil, err
	}
	r.refreshCache(ctx, &conv)
	return &conv, nil
}

// ListByOwner 返回指定用户的全部对话，按最近更新排序。
func (r *conversationRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}

// fromCache 尝试从 Redis 读取对话缓存。
func (r *conversationRepository) fromCache(ctx context.Context, id string) (*model.Conversation, bool) {
	jsonData, err := r.redisClient.Get(ctx, cacheKey(id)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		// 缓存读取失败只降级回源，不影响主流程
		log.Warnf("读取对话缓存失败: %v", err)
		return nil, false
	}
	var conv model.Conversation
	if err := json.Unmarshal([]byte(jsonData), &conv); err != nil {
		log.Warnf("解析对话缓存失败，作废该缓存: %v", err)
		r.invalidateCache(ctx, id)
		return nil, false
	}
	return &conv, true
}

// refreshCache 在每次成功写入后刷新 Redis 缓存。
func (r *conversationRepository) refreshCache(ctx context.Context, conv *model.Conversation) {
	jsonData, err := json.Marshal(conv)
	if err != nil {
		return
	}
	if err := r.redisClient.Set(ctx, cacheKey(conv.ID), jsonData, transcriptCacheTTL).Err(); err != nil {
		log.Warnf("刷新对话缓存失败: %v", err)
	}
}

// invalidateCache 在失败路径上作废缓存，避免返回陈旧轮次。
func (r *conversationRepository) invalidateCache(ctx context.Context, id string) {
	if err := r.redisClient.Del(ctx, cacheKey(id)).Err(); err != nil {
		log.Warnf("作废对话缓存失败: %v", err)
	}
}

func cacheKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}
