package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"alumnet/internal/services"
)

// AdminHandler 处理管理员专属操作:注册审核与公告管理。路由层已通过
// RequireAdmin 中间件保证调用者身份。
type AdminHandler struct {
	userService         services.UserService
	announcementService services.AnnouncementService
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(userService services.UserService, announcementService services.AnnouncementService) *AdminHandler {
	return &AdminHandler{
		userService:         userService,
		announcementService: announcementService,
	}
}

// ListPendingUsersHandler 返回等待审核的注册申请,按提交时间排序。
func (h *AdminHandler) ListPendingUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListPendingUsers(r.Context())
	if err != nil {
		log.Printf("Error listing pending users: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "获取待审核用户失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// ApproveUserHandler 批准一个注册申请。
func (h *AdminHandler) ApproveUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的用户 ID")
		return
	}

	if err := h.userService.ApproveUser(r.Context(), userID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error approving user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "审核用户失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已批准"})
}

// RejectUserHandler 驳回一个注册申请并删除该账号。
func (h *AdminHandler) RejectUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的用户 ID")
		return
	}

	if err := h.userService.RejectUser(r.Context(), userID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error rejecting user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "驳回注册失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已驳回"})
}

type publishAnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PublishAnnouncementHandler 发布全站公告。
func (h *AdminHandler) PublishAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req publishAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return
	}

	announcement, err := h.announcementService.PublishAnnouncement(r.Context(), userID, req.Title, req.Body)
	if err != nil {
		if errors.Is(err, services.ErrEmptyContent) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error publishing announcement: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "发布公告失败")
		return
	}
	writeJSONResponse(w, http.StatusCreated, announcement)
}

// DeleteAnnouncementHandler 删除公告。
func (h *AdminHandler) DeleteAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	announcementID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的公告 ID")
		return
	}

	if err := h.announcementService.DeleteAnnouncement(r.Context(), announcementID); err != nil {
		if errors.Is(err, services.ErrAnnouncementNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error deleting announcement %d: %v", announcementID, err)
		writeJSONError(w, http.StatusInternalServerError, "删除公告失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "公告已删除"})
}
