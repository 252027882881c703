package models

import "time"

// ConnectionStatus 定义连接记录的生命周期状态。
// 被拒绝的请求直接删除记录，不持久化 "rejected" 状态。
type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusAccepted ConnectionStatus = "accepted"
)

// ConnectionRole annotates a connection relative to one of its
// participants when listing.
type ConnectionRole string

const (
	ConnectionRoleSent      ConnectionRole = "sent"      // caller is the requester, still pending
	ConnectionRoleReceived  ConnectionRole = "received"  // caller is the receiver, still pending
	ConnectionRoleConnected ConnectionRole = "connected" // accepted
)

// Connection 代表两个用户之间的连接请求/连接关系。
// It deliberately does not embed BaseModel: rejected or removed
// connections are hard-deleted and must leave no trace, which a
// soft-delete column would both violate and break the pair unique index.
type Connection struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	RequesterID uint             `gorm:"not null;index" json:"requesterId"`
	ReceiverID  uint             `gorm:"not null;index" json:"receiverId"`
	Status      ConnectionStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Message     string           `gorm:"type:text" json:"message,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`

	// Canonical unordered pair: PairLowID < PairHighID always. The unique
	// index on the pair is what actually guarantees at most one record per
	// user pair, regardless of request direction, even under concurrent
	// inserts. Service-level pre-checks are only an optimization.
	PairLowID  uint `gorm:"not null;uniqueIndex:idx_connection_pair" json:"-"`
	PairHighID uint `gorm:"not null;uniqueIndex:idx_connection_pair" json:"-"`
}

// EnsurePairOrder fills the canonical pair columns from the requester and
// receiver IDs. It must be called before creating a Connection record.
func (c *Connection) EnsurePairOrder() {
	c.PairLowID, c.PairHighID = c.RequesterID, c.ReceiverID
	if c.PairLowID > c.PairHighID {
		c.PairLowID, c.PairHighID = c.PairHighID, c.PairLowID
	}
}

// Involves reports whether userID is one of the two participants.
func (c *Connection) Involves(userID uint) bool {
	return c.RequesterID == userID || c.ReceiverID == userID
}

// RoleFor returns the caller-relative annotation for this record.
func (c *Connection) RoleFor(userID uint) ConnectionRole {
	if c.Status == ConnectionStatusAccepted {
		return ConnectionRoleConnected
	}
	if c.RequesterID == userID {
		return ConnectionRoleSent
	}
	return ConnectionRoleReceived
}

// PeerID returns the ID of the other participant relative to userID.
func (c *Connection) PeerID(userID uint) uint {
	if c.RequesterID == userID {
		return c.ReceiverID
	}
	return c.RequesterID
}

// ConnectionWithPeer is a DTO pairing a connection with the caller-relative
// role and basic info about the counterparty. Used for list responses.
type ConnectionWithPeer struct {
	Connection
	Role ConnectionRole `json:"role"`
	Peer *UserBasicInfo `json:"peer,omitempty"`
}

// TableName 指定 Connection 模型的表名。
func (Connection) TableName() string {
	return "connections"
}
