// Package apperr 定义了业务层统一的错误分类。
// service 层返回 *Error，handler 层据此决定 HTTP 状态码与对外的原因描述，
// 内部错误细节只进日志，不进响应体。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 标识错误的类别，取值为一个封闭集合。
type Kind int

const (
	// InvalidRequest 缺少必填字段等请求级错误，不会触碰存储。
	InvalidRequest Kind = iota
	// Unauthorized 调用者凭证缺失或无效。
	Unauthorized
	// NotFound 对话不存在或不属于调用者。两种情况返回同一类别，
	// 避免向非所有者泄露对话是否存在。
	NotFound
	// AttachmentRejected 附件类型不在白名单内或超过大小上限。
	AttachmentRejected
	// Persistence 存储读写失败。
	Persistence
	// Gateway 推理服务调用失败，属于可重试的失败。
	Gateway
)

// Error 携带错误类别、面向用户的原因描述和可选的底层错误。
type Error struct {
	Kind   Kind
	Reason string // 对外展示的原因，与内部错误信息分离
	Err    error
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// Unwrap 返回底层错误，支持 errors.Is / errors.As 链式判断。
func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建一个不带底层错误的业务错误。
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap 创建一个包装底层错误的业务错误。
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf 提取错误的类别。无法识别的错误一律归为 Persistence（服务端故障）。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Persistence
}

// ReasonOf 提取面向用户的原因描述，识别失败时返回兜底文案。
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "服务器内部错误"
}

// HTTPStatus 将错误类别映射为 HTTP 状态码。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case AttachmentRejected:
		return http.StatusBadRequest
	case Gateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsKind 判断错误是否属于指定类别。
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
