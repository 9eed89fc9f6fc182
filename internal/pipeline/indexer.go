// Package pipeline 实现了异步轮次事件的消费端处理逻辑。
package pipeline

import (
	"context"
	"doc-chat-go/internal/model"
	"doc-chat-go/pkg/es"
	"doc-chat-go/pkg/log"
	"doc-chat-go/pkg/tasks"
	"fmt"
)

// TurnIndexer 把已提交的轮次事件写入 Elasticsearch 检索索引。
// 由 Kafka 消费端驱动，失败会触发消费端的重试逻辑。
type TurnIndexer struct {
	indexName string
}

// NewTurnIndexer 创建一个新的 TurnIndexer 实例。
func NewTurnIndexer(indexName string) *TurnIndexer {
	return &TurnIndexer{indexName: indexName}
}

// Process 将一条轮次事件转换为检索文档并写入索引。
// DocID 由对话、时间戳与角色拼出，重复投递时覆盖同一文档，实现幂等写入。
func (p *TurnIndexer) Process(ctx context.Context, event tasks.TurnEvent) error {
	doc := model.EsDocument{
		DocID:          fmt.Sprintf("%s-%d-%s", event.ConversationID, event.Timestamp.UnixNano(), event.Role),
		ConversationID: event.ConversationID,
		OwnerID:        event.OwnerID,
		Role:           event.Role,
		Content:        event.Content,
		Timestamp:      event.Timestamp,
	}

	if err := es.IndexDocument(ctx, p.indexName, doc); err != nil {
		log.Errorf("[TurnIndexer] 索引轮次失败, conversation: %s, error: %v", event.ConversationID, err)
		return err
	}

	log.Infof("[TurnIndexer] 轮次已索引, conversation: %s, role: %s", event.ConversationID, event.Role)
	return nil
}
