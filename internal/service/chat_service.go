// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/repository"
	"doc-chat-go/pkg/llm"
	"doc-chat-go/pkg/lock"
	"doc-chat-go/pkg/log"
	"doc-chat-go/pkg/tasks"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SendMessageInput 是一次追加轮次请求的输入。
// Message 与 File 至少要有一个。
type SendMessageInput struct {
	ConversationID string
	Message        string
	File           *IncomingFile
}

// ChatService 定义了对话轮次编排的接口。
type ChatService interface {
	// SendMessage 执行一次完整的追加协议：校验、归属检查、附件编码、
	// 持久化用户轮次、调用推理服务、提交 assistant 轮次或回滚用户轮次。
	// 成功时返回更新后的完整对话。
	SendMessage(ctx context.Context, user *model.User, in SendMessageInput) (*model.Conversation, error)
}

// TurnEventProducer 将已提交的轮次事件发布到消息队列，供搜索索引消费。
type TurnEventProducer interface {
	Produce(event tasks.TurnEvent) error
}

type chatService struct {
	conversationRepo repository.ConversationRepository
	attachmentSvc    AttachmentService
	llmClient        llm.Client
	producer         TurnEventProducer // 可为 nil，nil 时不发布事件
	locks            *lock.KeyedMutex
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(conversationRepo repository.ConversationRepository, attachmentSvc AttachmentService, llmClient llm.Client, producer TurnEventProducer) ChatService {
	return &chatService{
		conversationRepo: conversationRepo,
		attachmentSvc:    attachmentSvc,
		llmClient:        llmClient,
		producer:         producer,
		locks:            lock.NewKeyedMutex(),
	}
}

// SendMessage 执行追加协议。
//
// 用户轮次落库是持久性检查点：从那一刻起，对话里存在一个必须被回答
// 或被删除的"问题"。推理调用失败时删除刚写入的用户轮次，保证静止状态的
// 对话永远不会以未回答的 user 轮次结尾——下一轮会把完整对话重放给推理
// 服务，悬挂的 user 轮次会破坏双方都依赖的交替顺序。
func (s *chatService) SendMessage(ctx context.Context, user *model.User, in SendMessageInput) (*model.Conversation, error) {
	// 1. 请求级校验，不触碰存储
	if in.ConversationID == "" {
		return nil, apperr.New(apperr.InvalidRequest, "缺少对话 ID")
	}
	if strings.TrimSpace(in.Message) == "" && in.File == nil {
		return nil, apperr.New(apperr.InvalidRequest, "消息内容与附件不能同时为空")
	}

	conv, userTurn, assistantTurn, err := s.appendExchange(ctx, user, in)
	if err != nil {
		return nil, err
	}

	// 7. 发布已提交的轮次事件（尽力而为，失败只记日志）。
	// 在锁释放之后发布，慢 broker 不会拖长锁的持有时间。
	s.publishTurnEvents(conv, userTurn, assistantTurn)

	return conv, nil
}

// appendExchange 执行协议中需要持锁的部分：归属检查到提交或回滚。
// 成功时返回更新后的对话和提交的两条轮次。
func (s *chatService) appendExchange(ctx context.Context, user *model.User, in SendMessageInput) (*model.Conversation, model.Turn, model.Turn, error) {
	var zero model.Turn

	// 同一对话的追加严格串行；不同对话互不阻塞。
	// 锁覆盖归属检查到提交/回滚的全过程，两条路径都会释放。
	s.locks.Lock(in.ConversationID)
	defer s.locks.Unlock(in.ConversationID)

	// 2. 归属检查。未命中（不存在或属于他人）直接终止，没有任何副作用。
	conv, err := s.conversationRepo.FindByIDAndOwner(ctx, in.ConversationID, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, zero, zero, apperr.New(apperr.NotFound, "对话不存在或无权访问")
		}
		return nil, zero, zero, apperr.Wrap(apperr.Persistence, "加载对话失败", err)
	}

	// 3. 附件编码。编码被拒绝时协议终止，不会写入用户轮次。
	var attachment *model.Attachment
	if in.File != nil {
		attachment, err = s.attachmentSvc.Encode(in.File)
		if err != nil {
			return nil, zero, zero, err
		}
	}

	content := strings.TrimSpace(in.Message)
	if content == "" {
		// 纯附件轮次使用占位文本，保持 content 非空
		content = "[file] " + attachment.DisplayName
	}

	// 4. 持久化用户轮次——持久性检查点
	userTurn := model.Turn{
		Role:       model.RoleUser,
		Content:    content,
		Attachment: attachment,
		Timestamp:  time.Now(),
	}
	conv, err = s.conversationRepo.AppendTurn(ctx, in.ConversationID, userTurn)
	if err != nil {
		return nil, zero, zero, apperr.Wrap(apperr.Persistence, "保存消息失败", err)
	}

	// 从这里开始协议必须执行到提交或回滚为止。调用方取消连接只影响
	// 响应下发，绝不能把对话留在带悬挂 user 轮次的状态，
	// 因此与调用方的取消信号解耦（超时由推理客户端自行限制）。
	opCtx := context.WithoutCancel(ctx)

	// 5. 携带完整轮次快照调用推理服务，保证其拿到全部上下文
	reply, err := s.llmClient.Converse(opCtx, transcriptMessages(conv.Turns))
	if err != nil {
		// 6b. 推理失败：回滚刚写入的用户轮次，再向调用方暴露失败
		s.rollbackUserTurn(opCtx, in.ConversationID)
		log.Warnf("[ChatService] 推理调用失败, conversation: %s, error: %v", in.ConversationID, err)
		return nil, zero, zero, apperr.Wrap(apperr.Gateway, "AI 服务暂时不可用，请稍后重试", err)
	}

	// 6a. 推理成功：追加 assistant 轮次，提交
	assistantTurn := model.Turn{
		Role:      model.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	}
	conv, err = s.conversationRepo.AppendTurn(opCtx, in.ConversationID, assistantTurn)
	if err != nil {
		// assistant 轮次写入失败同样不能留下悬挂的 user 轮次
		s.rollbackUserTurn(opCtx, in.ConversationID)
		return nil, zero, zero, apperr.Wrap(apperr.Persistence, "保存回复失败", err)
	}

	return conv, userTurn, assistantTurn, nil
}

// rollbackUserTurn 删除刚持久化的用户轮次。
// 回滚本身失败是唯一无法恢复的情况：对话此刻可能携带一个未回答的
// user 轮次，必须以一致性告警的形式记录下来。
func (s *chatService) rollbackUserTurn(ctx context.Context, conversationID string) {
	if _, err := s.conversationRepo.RemoveLastTurn(ctx, conversationID); err != nil {
		log.Errorw("对话一致性告警：回滚用户轮次失败，事务可能残留未回答的 user 轮次",
			"conversationId", conversationID,
			"error", err,
		)
	}
}

// publishTurnEvents 将提交成功的一对轮次发布到 Kafka。
func (s *chatService) publishTurnEvents(conv *model.Conversation, turns ...model.Turn) {
	if s.producer == nil {
		return
	}
	for _, t := range turns {
		event := tasks.TurnEvent{
			ConversationID: conv.ID,
			OwnerID:        conv.OwnerID,
			Role:           t.Role,
			Content:        t.Content,
			Timestamp:      t.Timestamp,
		}
		if err := s.producer.Produce(event); err != nil {
			log.Warnf("[ChatService] 发布轮次事件失败, conversation: %s, error: %v", conv.ID, err)
		}
	}
}

// transcriptMessages 将轮次快照转换为推理服务的消息形式。
func transcriptMessages(turns model.TurnList) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{
			Role:       t.Role,
			Content:    t.Content,
			Attachment: t.Attachment,
		})
	}
	return msgs
}
