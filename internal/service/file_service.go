// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/config"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/repository"
	"doc-chat-go/pkg/log"
	"doc-chat-go/pkg/storage"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// downloadURLExpiry 是预签名下载链接的有效期。
const downloadURLExpiry = 15 * time.Minute

// FileService 定义了已存储附件的业务接口。
// 附件绑定到一个对话，字节本体在 MinIO，元数据在 MySQL；
// 删除附件只影响附件本身，永远不会触碰对话轮次。
type FileService interface {
	Upload(ctx context.Context, user *model.User, conversationID string, file *IncomingFile) (*model.FileRecord, error)
	DownloadURL(ctx context.Context, userID uint, fileID string) (*model.FileRecord, string, error)
	Delete(ctx context.Context, userID uint, fileID string) error
	ListByConversation(ctx context.Context, userID uint, conversationID string) ([]model.FileRecord, error)
}

type fileService struct {
	fileRepo         repository.FileRepository
	conversationRepo repository.ConversationRepository
	attachmentSvc    AttachmentService
	minioCfg         config.MinIOConfig
}

// NewFileService 创建一个新的 FileService 实例。
func NewFileService(fileRepo repository.FileRepository, conversationRepo repository.ConversationRepository, attachmentSvc AttachmentService, minioCfg config.MinIOConfig) FileService {
	return &fileService{
		fileRepo:         fileRepo,
		conversationRepo: conversationRepo,
		attachmentSvc:    attachmentSvc,
		minioCfg:         minioCfg,
	}
}

// Upload 校验并保存一个绑定到对话的附件。
// 元数据写入失败时清理已写入的对象，保证失败路径不残留孤儿字节。
func (s *fileService) Upload(ctx context.Context, user *model.User, conversationID string, file *IncomingFile) (*model.FileRecord, error) {
	if conversationID == "" {
		return nil, apperr.New(apperr.InvalidRequest, "缺少对话 ID")
	}

	// 对话必须存在且属于上传者
	if _, err := s.conversationRepo.FindByIDAndOwner(ctx, conversationID, user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "对话不存在或无权访问")
		}
		return nil, apperr.Wrap(apperr.Persistence, "加载对话失败", err)
	}

	objectKey := fmt.Sprintf("attachments/%s/%s", conversationID, uuid.NewString())
	att, err := s.attachmentSvc.Store(ctx, objectKey, file)
	if err != nil {
		return nil, err
	}

	record := &model.FileRecord{
		ID:             uuid.NewString(),
		OriginalName:   att.DisplayName,
		MediaType:      att.MediaType,
		SizeBytes:      att.SizeBytes,
		ObjectKey:      att.ObjectKey,
		UserID:         user.ID,
		ConversationID: conversationID,
	}
	if err := s.fileRepo.Create(record); err != nil {
		// 元数据落库失败，清理刚写入的对象
		if rmErr := storage.RemoveObject(ctx, s.minioCfg.BucketName, objectKey); rmErr != nil {
			log.Warnf("[FileService] 清理孤儿对象失败, objectKey: %s, error: %v", objectKey, rmErr)
		}
		return nil, apperr.Wrap(apperr.Persistence, "保存文件记录失败", err)
	}

	log.Infof("[FileService] 附件上传成功, file: %s, conversation: %s", record.ID, conversationID)
	return record, nil
}

// DownloadURL 为用户自己的附件生成预签名下载链接。
func (s *fileService) DownloadURL(ctx context.Context, userID uint, fileID string) (*model.FileRecord, string, error) {
	record, err := s.findOwned(fileID, userID)
	if err != nil {
		return nil, "", err
	}

	url, err := storage.GetPresignedURL(s.minioCfg.BucketName, record.ObjectKey, downloadURLExpiry)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.Persistence, "生成下载链接失败", err)
	}
	return record, url, nil
}

// Delete 删除用户自己的附件：先删对象再删记录。
func (s *fileService) Delete(ctx context.Context, userID uint, fileID string) error {
	record, err := s.findOwned(fileID, userID)
	if err != nil {
		return err
	}

	if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, record.ObjectKey); err != nil {
		// 对象删除失败只告警，继续删除记录，避免记录永远无法清理
		log.Warnf("[FileService] 删除对象失败, objectKey: %s, error: %v", record.ObjectKey, err)
	}
	if err := s.fileRepo.Delete(record); err != nil {
		return apperr.Wrap(apperr.Persistence, "删除文件记录失败", err)
	}
	return nil
}

// ListByConversation 返回绑定到某对话的全部附件。
func (s *fileService) ListByConversation(ctx context.Context, userID uint, conversationID string) ([]model.FileRecord, error) {
	// 对话归属校验与附件查询一致，都以调用者身份过滤
	if _, err := s.conversationRepo.FindByIDAndOwner(ctx, conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "对话不存在或无权访问")
		}
		return nil, apperr.Wrap(apperr.Persistence, "加载对话失败", err)
	}

	records, err := s.fileRepo.ListByConversation(conversationID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "加载文件列表失败", err)
	}
	return records, nil
}

func (s *fileService) findOwned(fileID string, userID uint) (*model.FileRecord, error) {
	record, err := s.fileRepo.FindByIDAndUser(fileID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "文件不存在或无权访问")
		}
		return nil, apperr.Wrap(apperr.Persistence, "查询文件失败", err)
	}
	return record, nil
}
