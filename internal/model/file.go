// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// FileRecord 定义了 file_records 表的 ORM 模型。
// 它记录了绑定到某个对话的已存储附件的元数据，字节本体保存在 MinIO 中。
type FileRecord struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OriginalName   string    `gorm:"type:varchar(255);not null" json:"originalName"`
	MediaType      string    `gorm:"type:varchar(128);not null" json:"mediaType"`
	SizeBytes      int64     `gorm:"not null" json:"size"`
	ObjectKey      string    `gorm:"type:varchar(255);not null" json:"-"` // MinIO 对象定位符，不对外暴露
	UserID         uint      `gorm:"index;not null" json:"-"`
	ConversationID string    `gorm:"index;type:varchar(36);not null" json:"chatId"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (FileRecord) TableName() string {
	return "file_records"
}
