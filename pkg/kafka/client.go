// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"doc-chat-go/internal/config"
	"doc-chat-go/pkg/database"
	"doc-chat-go/pkg/log"
	"doc-chat-go/pkg/tasks"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// TurnProcessor defines the interface for any service that can process a turn event.
// This decouples the Kafka consumer from the concrete indexer implementation.
type TurnProcessor interface {
	Process(ctx context.Context, event tasks.TurnEvent) error
}

// Producer 将已提交的轮次事件写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建一个新的 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Produce 发送一个轮次事件到 Kafka。
func (p *Producer) Produce(event tasks.TurnEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(context.Background(),
		kafka.Message{
			// 以对话 ID 作为 key，保证同一对话的事件落在同一分区、保持顺序
			Key:   []byte(event.ConversationID),
			Value: eventBytes,
		},
	)
}

// StartConsumer 启动一个 Kafka 消费者来处理轮次事件。
func StartConsumer(cfg config.KafkaConfig, processor TurnProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "doc-chat-go-indexer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break // 退出循环，可能需要重启策略
		}

		var event tasks.TurnEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		if err := processor.Process(context.Background(), event); err != nil {
			log.Errorf("处理轮次事件失败: conversation=%s, error: %v", event.ConversationID, err)
			// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
			attemptsKey := fmt.Sprintf("kafka:attempts:%s:%d", event.ConversationID, event.Timestamp.UnixNano())
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			if attempts >= 3 {
				log.Errorf("轮次事件多次失败(>=3)，提交 offset 终止重试: conversation=%s", event.ConversationID)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
			// attempts < 3 时，不提交 offset 让 Kafka 自动重试
		} else {
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:attempts:%s:%d", event.ConversationID, event.Timestamp.UnixNano())).Err()
			// 事件处理成功后，手动提交 offset
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
