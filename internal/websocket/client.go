package websocket

import (
	"log"
	"net/http"
	"time"

	"alumnet/internal/config"

	"github.com/gorilla/websocket"
)

// Client is a middleman between a websocket connection and the hub.
// Connections are delivery-only: clients receive notification pushes and
// do not send application messages over the socket. Everything a user
// does goes through the REST API.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound payloads.
	send chan []byte

	// Authenticated user ID for this client.
	UserID uint
}

// readPump drains the connection so control frames (pong, close) are
// processed. Any data frame from the client is ignored.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket 错误 (客户端: %d): %v", c.UserID, err)
			}
			break
		}
	}
}

// writePump pumps notifications from the hub to the websocket connection.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	newlineBytes := []byte("\n")
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(wsCfg.WriteWaitSeconds) * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// 聚合发送队列中积压的通知
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newlineBytes)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(wsCfg.WriteWaitSeconds) * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs 将已认证用户的 HTTP 请求升级为 websocket 连接并挂入 Hub。
func ServeWs(hub *Hub, userID uint, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsCfg.MaxMessageSizeBytes,
		WriteBufferSize: wsCfg.MaxMessageSizeBytes,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ServeWs - Upgrade失败:", err)
		return
	}
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		UserID: userID,
	}
	client.hub.register <- client

	go client.writePump(wsCfg)
	go client.readPump(wsCfg)

	log.Printf("客户端已连接: UserID %d", userID)
}
