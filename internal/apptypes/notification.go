package apptypes

import "time"

// NotificationType identifies what a pushed notification is about.
type NotificationType string

const (
	// NotificationConnectionRequest 有人向你发起了连接请求。
	NotificationConnectionRequest NotificationType = "connection.request"
	// NotificationConnectionAccepted 你发出的连接请求被接受。
	NotificationConnectionAccepted NotificationType = "connection.accepted"
	// NotificationDirectMessage 收到一条新私信。
	NotificationDirectMessage NotificationType = "message.direct"
)

// Notification is the payload produced to Kafka by the API server and
// pushed to the recipient over WebSocket by the chat server. The API path
// never depends on delivery succeeding: the database write is the source
// of truth, this is fan-out only.
type Notification struct {
	Type        NotificationType `json:"type"`
	RecipientID uint             `json:"recipientId"`
	SenderID    uint             `json:"senderId"`
	SenderName  string           `json:"senderName,omitempty"`
	// ConnectionID / MessageID 让客户端可以直接拉取对应资源。
	ConnectionID uint      `json:"connectionId,omitempty"`
	MessageID    uint      `json:"messageId,omitempty"`
	Preview      string    `json:"preview,omitempty"` // 私信或请求附言的截断预览
	Timestamp    time.Time `json:"timestamp"`
}
