// Package llm provides a client for interacting with the inference provider.
package llm

import (
	"bytes"
	"context"
	"doc-chat-go/internal/config"
	"doc-chat-go/internal/model"
	"doc-chat-go/pkg/log"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// NoResponseText 是推理服务返回体缺少回复字段时写入 assistant 轮次的兜底文案。
// 保留该宽容行为是有意为之：畸形的服务响应仍然产生一条可见、可排查的回复，
// 同时通过 Warn 日志暴露协议违约。
const NoResponseText = "No response from AI"

// defaultTimeout 在配置未指定时限制单次推理调用的时长。
const defaultTimeout = 60 * time.Second

// ErrorKind 区分推理调用失败的类别。
type ErrorKind int

const (
	// KindUnreachable 连接失败，服务不可达。
	KindUnreachable ErrorKind = iota
	// KindTimeout 调用超时。
	KindTimeout
	// KindBadResponse 非成功状态码或响应体无法解析。
	KindBadResponse
)

// String 返回类别的可读名称。
func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// GatewayError 携带推理调用失败的类别与细节。
// 调用方通过 errors.As 取出类别；本包不做任何重试。
type GatewayError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// Error 实现 error 接口。
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Detail)
}

// Unwrap 返回底层错误。
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Message 是发送给推理服务的单条轮次。
// attachment 字段在没有附件时整体省略，不发送 null 占位，
// 避免服务端把 null 误解析为附件。
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	Attachment *model.Attachment `json:"attachment,omitempty"`
}

// Client defines the interface for an inference client.
type Client interface {
	// Converse 将完整的轮次快照发送给推理服务，返回回复文本。
	// 快照由调用方显式传入，本方法不读取也不修改任何共享状态。
	Converse(ctx context.Context, messages []Message) (string, error)
}

type ollamaClient struct {
	cfg     config.LLMConfig
	client  *http.Client
	timeout time.Duration
}

// NewClient creates a new inference client based on the config.
func NewClient(cfg config.LLMConfig) Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &ollamaClient{
		cfg:     cfg,
		client:  &http.Client{},
		timeout: timeout,
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

// Converse calls the chat API with the full transcript and returns the reply text.
func (c *ollamaClient) Converse(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   false,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, "POST", c.cfg.BaseURL+"/api/chat", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &GatewayError{
			Kind:   KindBadResponse,
			Detail: fmt.Sprintf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes)),
		}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &GatewayError{Kind: KindBadResponse, Detail: "failed to decode chat response body", Err: err}
	}

	reply := chatResp.Message.Content
	if strings.TrimSpace(reply) == "" {
		// 响应体合法但回复字段缺失或为空：按原语义替换为兜底文案并告警
		log.Warnf("推理服务响应缺少回复内容，使用兜底文案替代")
		return NoResponseText, nil
	}
	return reply, nil
}

// classifyTransportError 将传输层错误归类为超时或不可达。
func classifyTransportError(err error) *GatewayError {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &GatewayError{Kind: KindTimeout, Detail: "chat api call timed out", Err: err}
	}
	return &GatewayError{Kind: KindUnreachable, Detail: "failed to call chat api", Err: err}
}
