package service

import (
	"bytes"
	"context"
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/config"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAttachmentService 使用默认上限构造附件服务，不接触对象存储。
func newTestAttachmentService() AttachmentService {
	return NewAttachmentService(0, config.MinIOConfig{})
}

// newIncomingFile 用内存字节构造一个上传附件。
func newIncomingFile(name, mediaType string, data []byte) *IncomingFile {
	return &IncomingFile{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Reader:    bytes.NewReader(data),
	}
}

func TestValidateMediaTypeAllowList(t *testing.T) {
	svc := newTestAttachmentService()

	allowed := []string{
		"application/pdf",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
	for _, mt := range allowed {
		assert.NoError(t, svc.Validate(mt, 1024), mt)
	}

	rejected := []string{
		"text/plain",
		"image/png",
		"application/zip",
		"",
	}
	for _, mt := range rejected {
		err := svc.Validate(mt, 1024)
		require.Error(t, err, mt)
		assert.True(t, apperr.IsKind(err, apperr.AttachmentRejected))
	}
}

func TestValidateSizeBoundary(t *testing.T) {
	svc := newTestAttachmentService()

	// 恰好等于上限的附件允许通过
	assert.NoError(t, svc.Validate("application/pdf", DefaultMaxAttachmentSize))

	// 超过上限一个字节即拒绝
	err := svc.Validate("application/pdf", DefaultMaxAttachmentSize+1)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.AttachmentRejected))
}

func TestEncodeProducesInlinePayload(t *testing.T) {
	svc := newTestAttachmentService()
	data := []byte("%PDF-1.4 fake pdf content")

	att, err := svc.Encode(newIncomingFile("report.pdf", "application/pdf", data))
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", att.DisplayName)
	assert.Equal(t, "application/pdf", att.MediaType)
	assert.Equal(t, int64(len(data)), att.SizeBytes)
	assert.True(t, att.Inline())
	assert.Empty(t, att.ObjectKey)

	decoded, err := base64.StdEncoding.DecodeString(att.Data)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestEncodeRejectsOversizedStream(t *testing.T) {
	// 上限设小便于构造超限字节流
	svc := NewAttachmentService(16, config.MinIOConfig{})

	// 声明大小合法但实际字节数超限
	f := &IncomingFile{
		Name:      "report.pdf",
		MediaType: "application/pdf",
		Size:      10,
		Reader:    bytes.NewReader(bytes.Repeat([]byte("a"), 32)),
	}
	_, err := svc.Encode(f)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.AttachmentRejected))
}

func TestEncodeExactLimitPasses(t *testing.T) {
	svc := NewAttachmentService(16, config.MinIOConfig{})
	data := bytes.Repeat([]byte("a"), 16)

	att, err := svc.Encode(newIncomingFile("report.pdf", "application/pdf", data))
	require.NoError(t, err)
	assert.Equal(t, int64(16), att.SizeBytes)
}

func TestDecodeInlineRoundTrip(t *testing.T) {
	svc := newTestAttachmentService()
	data := []byte("%PDF-1.4 round trip")

	att, err := svc.Encode(newIncomingFile("report.pdf", "application/pdf", data))
	require.NoError(t, err)

	decoded, err := svc.Decode(context.Background(), att)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}
