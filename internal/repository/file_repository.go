// Package repository 提供了数据访问层的实现。
package repository

import (
	"doc-chat-go/internal/model"

	"gorm.io/gorm"
)

// FileRepository 接口定义了已存储附件记录的持久化操作。
type FileRepository interface {
	Create(record *model.FileRecord) error
	// FindByIDAndUser 在记录不存在与不属于该用户两种情况下返回同一个错误。
	FindByIDAndUser(id string, userID uint) (*model.FileRecord, error)
	Delete(record *model.FileRecord) error
	ListByConversation(conversationID string, userID uint) ([]model.FileRecord, error)
}

type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建一个新的 FileRepository 实例。
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

// Create 在数据库中创建一条附件记录。
func (r *fileRepository) Create(record *model.FileRecord) error {
	return r.db.Create(record).Error
}

// FindByIDAndUser 查找指定用户拥有的附件记录。
func (r *fileRepository) FindByIDAndUser(id string, userID uint) (*model.FileRecord, error) {
	var record model.FileRecord
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete 删除一条附件记录。
func (r *fileRepository) Delete(record *model.FileRecord) error {
	return r.db.Delete(record).Error
}

// ListByConversation 返回绑定到某个对话的全部附件记录，按创建时间倒序。
func (r *fileRepository) ListByConversation(conversationID string, userID uint) ([]model.FileRecord, error) {
	var records []model.FileRecord
	err := r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}
