package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"alumnet/internal/services"
)

// MessageHandler 处理站内私信。
type MessageHandler struct {
	messageService services.MessageService
}

// NewMessageHandler creates a new MessageHandler instance.
func NewMessageHandler(messageService services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type sendMessageRequest struct {
	RecipientID uint   `json:"recipientId"`
	Content     string `json:"content"`
}

// SendMessageHandler 发送私信,仅限已建立连接的双方。
func (h *MessageHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return
	}
	if req.RecipientID == 0 {
		writeJSONError(w, http.StatusBadRequest, "缺少接收者")
		return
	}

	message, err := h.messageService.SendMessage(r.Context(), userID, req.RecipientID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotConnected):
			writeJSONError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, services.ErrSelfConnection), errors.Is(err, services.ErrEmptyContent):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("Error sending message from %d to %d: %v", userID, req.RecipientID, err)
			writeJSONError(w, http.StatusInternalServerError, "发送消息失败")
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, message)
}

// ListConversationHandler 返回与指定用户的消息记录。
func (h *MessageHandler) ListConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	peerID, err := pathID(r, "peerId")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的用户 ID")
		return
	}
	limit := queryInt(r.URL.Query(), "limit", 50)
	offset := queryInt(r.URL.Query(), "offset", 0)

	messages, err := h.messageService.ListConversation(r.Context(), userID, peerID, limit, offset)
	if err != nil {
		if errors.Is(err, services.ErrNotConnected) {
			writeJSONError(w, http.StatusForbidden, err.Error())
			return
		}
		log.Printf("Error listing conversation %d<->%d: %v", userID, peerID, err)
		writeJSONError(w, http.StatusInternalServerError, "获取消息记录失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

// MarkReadHandler 将与指定用户的会话中发给自己的消息标记为已读。
func (h *MessageHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	peerID, err := pathID(r, "peerId")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的用户 ID")
		return
	}

	count, err := h.messageService.MarkConversationRead(r.Context(), userID, peerID)
	if err != nil {
		log.Printf("Error marking conversation %d<->%d read: %v", userID, peerID, err)
		writeJSONError(w, http.StatusInternalServerError, "标记已读失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"marked": count})
}

// UnreadCountHandler 返回当前用户的未读消息数。
func (h *MessageHandler) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	count, err := h.messageService.CountUnread(r.Context(), userID)
	if err != nil {
		log.Printf("Error counting unread messages for user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "统计未读消息失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"unread": count})
}
