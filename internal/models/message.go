package models

import "time"

// Message 代表两个已连接用户之间的一条私信。
// 私信只允许在已建立连接 (accepted) 的用户之间发送，
// 校验在 MessageService 中完成。
type Message struct {
	BaseModel
	SenderID    uint       `gorm:"not null;index:idx_message_pair" json:"senderId"`
	RecipientID uint       `gorm:"not null;index:idx_message_pair" json:"recipientId"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ReadAt      *time.Time `json:"readAt,omitempty"`

	// 关联关系
	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}
