package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"alumnet/internal/models"
	"alumnet/internal/services"
)

// UserHandler 处理个人资料与通讯录检索。
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetMeHandler 返回当前登录用户的完整资料。
func (h *UserHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error fetching profile for user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "获取用户资料失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Nickname       *string `json:"nickname"`
	AvatarURL      *string `json:"avatarUrl"`
	Bio            *string `json:"bio"`
	GraduationYear *int    `json:"graduationYear"`
	Major          *string `json:"major"`
}

// UpdateMeHandler 更新当前用户的个人资料,仅提交的字段会被修改。
func (h *UserHandler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, services.ProfileUpdate{
		Nickname:       req.Nickname,
		AvatarURL:      req.AvatarURL,
		Bio:            req.Bio,
		GraduationYear: req.GraduationYear,
		Major:          req.Major,
	})
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error updating profile for user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "更新用户资料失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// SearchDirectoryHandler 按关键字与角色检索已审核用户。
func (h *UserHandler) SearchDirectoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	role := models.UserRole(r.URL.Query().Get("role"))
	limit := queryInt(r.URL.Query(), "limit", 20)

	users, err := h.userService.SearchDirectory(r.Context(), userID, query, role, limit)
	if err != nil {
		log.Printf("Error searching directory for user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "检索通讯录失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}
