// Package model 包含了应用的数据模型定义。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 对话轮次的角色，封闭集合。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attachment 是附件的值对象。载荷二选一：
// Data 内联保存原始字节的 base64 编码（随请求发给推理服务），
// ObjectKey 保存 MinIO 中的对象定位符（存储后端演进不影响 Turn 结构）。
// 两者永远不会同时存在。
type Attachment struct {
	DisplayName string `json:"displayName"`
	MediaType   string `json:"mediaType"`
	SizeBytes   int64  `json:"sizeBytes"`
	Data        string `json:"data,omitempty"`
	ObjectKey   string `json:"objectKey,omitempty"`
}

// Inline 报告附件载荷是否为内联编码形式。
func (a *Attachment) Inline() bool {
	return a.Data != ""
}

// Turn 代表对话中的单条消息。Turn 归属于其所在的 Conversation，
// 没有独立的标识和生命周期，追加后不再修改。
type Turn struct {
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// TurnList 是对话的完整轮次序列，在 MySQL 中以 JSON 文本列存储。
type TurnList []Turn

// Value 实现 driver.Valuer 接口，将轮次序列序列化为 JSON。
func (l TurnList) Value() (driver.Value, error) {
	if l == nil {
		l = TurnList{}
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口，从 JSON 文本列反序列化轮次序列。
func (l *TurnList) Scan(value interface{}) error {
	if value == nil {
		*l = TurnList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将 %T 扫描为 TurnList", value)
	}
	if len(data) == 0 {
		*l = TurnList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// NextRole 返回当前序列下一个合法的轮次角色。
// 轮次严格按 user、assistant 交替，从 user 开始。
func (l TurnList) NextRole() string {
	if len(l)%2 == 0 {
		return RoleUser
	}
	return RoleAssistant
}

// Validate 校验整个序列满足交替不变式。
func (l TurnList) Validate() error {
	for i, t := range l {
		expected := RoleUser
		if i%2 == 1 {
			expected = RoleAssistant
		}
		if t.Role != expected {
			return fmt.Errorf("第 %d 条轮次角色为 %q，期望 %q", i, t.Role, expected)
		}
	}
	return nil
}

// CheckAppend 校验以 role 追加一条轮次是否保持交替不变式。
func (l TurnList) CheckAppend(role string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("未知的轮次角色 %q", role)
	}
	if expected := l.NextRole(); role != expected {
		return fmt.Errorf("追加角色 %q 违反交替顺序，期望 %q", role, expected)
	}
	return nil
}

// ErrLastTurnNotUser 表示回滚时尾部轮次不是 user，拒绝删除。
var ErrLastTurnNotUser = errors.New("尾部轮次不是 user，拒绝回滚删除")

// Conversation 代表一个用户的一段持久化对话。
// Turns 只通过追加协议变更；OwnerID 创建后不可变。
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID   uint      `gorm:"index;not null" json:"ownerId"`
	Turns     TurnList  `gorm:"type:longtext" json:"messages"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "conversations"
}
