// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/config"
	"doc-chat-go/internal/model"
	"doc-chat-go/pkg/storage"
	"encoding/base64"
	"fmt"
	"io"
)

// DefaultMaxAttachmentSize 是附件大小的默认上限（10 MiB），与上限相等的附件允许通过。
const DefaultMaxAttachmentSize int64 = 10 * 1024 * 1024

// allowedMediaTypes 是附件媒体类型的白名单，封闭集合：PDF、PPTX、DOCX。
var allowedMediaTypes = map[string]string{
	"application/pdf": "PDF",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "PPTX",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "DOCX",
}

// IncomingFile 描述一个待处理的上传附件：声明的元数据加上字节流。
type IncomingFile struct {
	Name      string
	MediaType string
	Size      int64
	Reader    io.Reader
}

// AttachmentService 定义了附件编解码的接口。
// Encode 产出内联 base64 载荷（随请求发给推理服务），
// Store 将字节写入 MinIO 并产出定位符载荷，两种表示二选一。
type AttachmentService interface {
	Validate(mediaType string, size int64) error
	Encode(file *IncomingFile) (*model.Attachment, error)
	Store(ctx context.Context, objectKey string, file *IncomingFile) (*model.Attachment, error)
	Decode(ctx context.Context, att *model.Attachment) ([]byte, error)
}

type attachmentService struct {
	maxSize  int64
	minioCfg config.MinIOConfig
}

// NewAttachmentService 创建一个新的 AttachmentService 实例。
// maxSize 为 0 时使用默认上限 10 MiB。
func NewAttachmentService(maxSize int64, minioCfg config.MinIOConfig) AttachmentService {
	if maxSize <= 0 {
		maxSize = DefaultMaxAttachmentSize
	}
	return &attachmentService{maxSize: maxSize, minioCfg: minioCfg}
}

// Validate 校验声明的媒体类型与大小。
// 拒绝属于客户端错误（AttachmentRejected），不会产生任何持久化副作用。
func (s *attachmentService) Validate(mediaType string, size int64) error {
	if _, ok := allowedMediaTypes[mediaType]; !ok {
		return apperr.New(apperr.AttachmentRejected, "不支持的文件类型，仅允许 PDF、PPTX、DOCX")
	}
	if size > s.maxSize {
		return apperr.New(apperr.AttachmentRejected, fmt.Sprintf("文件过大，上限为 %d 字节", s.maxSize))
	}
	return nil
}

// Encode 将附件编码为可以安全嵌入 JSON 请求体的内联表示。
func (s *attachmentService) Encode(file *IncomingFile) (*model.Attachment, error) {
	if err := s.Validate(file.MediaType, file.Size); err != nil {
		return nil, err
	}

	// 按上限 +1 读取，防御声明大小与实际字节数不一致的客户端
	raw, err := io.ReadAll(io.LimitReader(file.Reader, s.maxSize+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.AttachmentRejected, "读取上传文件失败", err)
	}
	if int64(len(raw)) > s.maxSize {
		return nil, apperr.New(apperr.AttachmentRejected, fmt.Sprintf("文件过大，上限为 %d 字节", s.maxSize))
	}

	return &model.Attachment{
		DisplayName: file.Name,
		MediaType:   file.MediaType,
		SizeBytes:   int64(len(raw)),
		Data:        base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// Store 将附件字节写入 MinIO 并返回定位符表示。
func (s *attachmentService) Store(ctx context.Context, objectKey string, file *IncomingFile) (*model.Attachment, error) {
	if err := s.Validate(file.MediaType, file.Size); err != nil {
		return nil, err
	}

	if err := storage.PutObject(ctx, s.minioCfg.BucketName, objectKey, file.Reader, file.Size, file.MediaType); err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "保存文件失败", err)
	}

	return &model.Attachment{
		DisplayName: file.Name,
		MediaType:   file.MediaType,
		SizeBytes:   file.Size,
		ObjectKey:   objectKey,
	}, nil
}

// Decode 将附件还原为原始字节，支持内联与定位符两种表示。
// 推理调用路径只使用编码后的形式，本方法服务于原始文件的重新下发。
func (s *attachmentService) Decode(ctx context.Context, att *model.Attachment) ([]byte, error) {
	if att.Inline() {
		raw, err := base64.StdEncoding.DecodeString(att.Data)
		if err != nil {
			return nil, apperr.Wrap(apperr.Persistence, "附件内联载荷损坏", err)
		}
		return raw, nil
	}
	raw, err := storage.GetObject(ctx, s.minioCfg.BucketName, att.ObjectKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "读取文件失败", err)
	}
	return raw, nil
}
