package chatserver

import (
	"log"
	"net/http"

	"alumnet/internal/auth"
	"alumnet/internal/config"
	ws "alumnet/internal/websocket"
)

// WebSocketHandler 负责处理 WebSocket 连接请求。连接是只读的推送通道,
// 必须携带有效令牌,匿名连接一律拒绝。
type WebSocketHandler struct {
	hub       *ws.Hub
	blacklist auth.TokenBlacklist
	cfg       config.Config
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler 实例。
func NewWebSocketHandler(hub *ws.Hub, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		blacklist: blacklist,
		cfg:       cfg,
	}
}

// ServeWS 验证 token 查询参数后将 HTTP 连接升级为 WebSocket 连接。
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "缺少认证令牌", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		log.Printf("WebSocket 连接尝试失败:令牌无效: %v", err)
		http.Error(w, "令牌无效", http.StatusUnauthorized)
		return
	}

	log.Printf("用户 %s (ID: %d) 尝试连接 WebSocket", claims.Username, claims.UserID)
	ws.ServeWs(h.hub, claims.UserID, w, r, h.cfg.WebSocket)
}
