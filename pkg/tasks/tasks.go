// Package tasks defines the structure for events that are sent to Kafka.
package tasks

import "time"

// TurnEvent represents a single committed conversation turn.
// 只有提交成功的轮次才会产生事件，回滚的轮次不会进入索引。
type TurnEvent struct {
	ConversationID string    `json:"conversation_id"`
	OwnerID        uint      `json:"owner_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}
