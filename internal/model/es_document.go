// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// EsDocument 代表存储在 Elasticsearch 中的单条已提交轮次。
type EsDocument struct {
	DocID          string    `json:"doc_id"` // 唯一标识，conversationID + 时间戳纳秒 + 角色
	ConversationID string    `json:"conversation_id"`
	OwnerID        uint      `json:"owner_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// SearchHitDTO 定义了返回给前端的轮次搜索结果结构。
type SearchHitDTO struct {
	ConversationID string    `json:"chatId"`
	Role           string    `json:"role"`
	Snippet        string    `json:"snippet"`
	Timestamp      time.Time `json:"timestamp"`
	Score          float64   `json:"score"`
}
