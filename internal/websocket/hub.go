package websocket

import (
	"encoding/json"
	"log"

	"alumnet/internal/apptypes"
)

// Hub maintains the set of active clients and pushes notifications to
// them. One connection per user ID; a new connection replaces the old one.
type Hub struct {
	clients map[uint]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Notifications aimed at a specific user.
	direct chan *apptypes.Notification
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uint]*Client),
		direct:     make(chan *apptypes.Notification, 256),
	}
}

// Deliver hands a notification to the hub for push delivery. The send is
// non-blocking so a full hub never stalls the Kafka consumer; recipients
// who miss a push still see the underlying record via the REST API.
func (h *Hub) Deliver(n *apptypes.Notification) {
	select {
	case h.direct <- n:
	default:
		log.Printf("警告: Hub 投递通道已满,丢弃发给用户 %d 的通知。", n.RecipientID)
	}
}

// Run starts the hub and listens for events on its channels.
func (h *Hub) Run() {
	log.Println("WebSocket Hub Run loop started.")
	for {
		select {
		case client := <-h.register:
			if existingClient, ok := h.clients[client.UserID]; ok {
				log.Printf("警告: 用户 %d 已有连接,关闭旧连接并注册新连接。", client.UserID)
				close(existingClient.send)
			}
			h.clients[client.UserID] = client
			log.Printf("客户端已注册: UserID %d", client.UserID)

		case client := <-h.unregister:
			// Only remove the client if it is still the stored one; an old
			// connection replaced by a newer one must not tear down the
			// newer client's send channel.
			if storedClient, ok := h.clients[client.UserID]; ok && storedClient == client {
				delete(h.clients, client.UserID)
				close(client.send)
				log.Printf("客户端已注销: UserID %d", client.UserID)
			} else {
				log.Printf("尝试注销一个不匹配或已过期的客户端连接: UserID %d", client.UserID)
			}

		case n := <-h.direct:
			client, ok := h.clients[n.RecipientID]
			if !ok {
				// Recipient not connected to this hub instance.
				continue
			}
			payload, err := json.Marshal(n)
			if err != nil {
				log.Printf("错误: 无法序列化通知以发送给 UserID %d: %v", n.RecipientID, err)
				continue
			}
			select {
			case client.send <- payload:
			default:
				// A full buffer means the client is slow or gone.
				log.Printf("警告: UserID %d 的发送通道已满或关闭,移除客户端。", n.RecipientID)
				close(client.send)
				delete(h.clients, n.RecipientID)
			}
		}
	}
}
