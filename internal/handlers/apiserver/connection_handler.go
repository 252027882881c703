package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"alumnet/internal/services"
)

// ConnectionHandler 处理连接(人脉)相关的所有请求。
type ConnectionHandler struct {
	connectionService services.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler instance.
func NewConnectionHandler(connectionService services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connectionService: connectionService}
}

type requestConnectionRequest struct {
	TargetID uint   `json:"targetId"`
	Message  string `json:"message"`
}

// RequestConnectionHandler 发起连接请求。
//
// 若双方已存在连接或待处理请求,返回 200 与现有记录,请求视为幂等的
// 重复提交而不是错误。
func (h *ConnectionHandler) RequestConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req requestConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return
	}
	if req.TargetID == 0 {
		writeJSONError(w, http.StatusBadRequest, "缺少目标用户")
		return
	}

	conn, err := h.connectionService.RequestConnection(r.Context(), userID, req.TargetID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConnectionExists):
			// conn holds the surviving record for the pair.
			writeJSONResponse(w, http.StatusOK, conn)
		case errors.Is(err, services.ErrSelfConnection):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrTargetNotFound):
			writeJSONError(w, http.StatusNotFound, err.Error())
		default:
			log.Printf("Error requesting connection %d -> %d: %v", userID, req.TargetID, err)
			writeJSONError(w, http.StatusInternalServerError, "发起连接请求失败")
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, conn)
}

// AcceptConnectionHandler 接受一条发给自己的待处理连接请求。
func (h *ConnectionHandler) AcceptConnectionHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

// RejectConnectionHandler 拒绝一条发给自己的待处理连接请求,记录随即删除。
func (h *ConnectionHandler) RejectConnectionHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *ConnectionHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	connID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的连接 ID")
		return
	}

	if err := h.connectionService.RespondToConnection(r.Context(), userID, connID, accept); err != nil {
		if errors.Is(err, services.ErrConnectionNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error responding to connection %d by user %d: %v", connID, userID, err)
		writeJSONError(w, http.StatusInternalServerError, "处理连接请求失败")
		return
	}

	if accept {
		writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已接受连接请求"})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已拒绝连接请求"})
}

// RemoveConnectionHandler 解除一条已建立的连接,双方任一方均可操作。
func (h *ConnectionHandler) RemoveConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	connID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的连接 ID")
		return
	}

	if err := h.connectionService.RemoveConnection(r.Context(), userID, connID); err != nil {
		if errors.Is(err, services.ErrConnectionNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error removing connection %d by user %d: %v", connID, userID, err)
		writeJSONError(w, http.StatusInternalServerError, "解除连接失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已解除连接"})
}

// ListConnectionsHandler 列出当前用户参与的连接,可按 filter 过滤:
// all(默认)、pending、accepted。
func (h *ConnectionHandler) ListConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	filter := r.URL.Query().Get("filter")
	connections, err := h.connectionService.ListConnections(r.Context(), userID, filter)
	if err != nil {
		if errors.Is(err, services.ErrInvalidFilter) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error listing connections for user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "获取连接列表失败")
		return
	}

	writeJSONResponse(w, http.StatusOK, connections)
}
