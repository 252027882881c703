package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"alumnet/internal/auth"
	"alumnet/internal/middleware"
	"alumnet/internal/models"
	"alumnet/internal/services"
)

// AuthHandler 处理注册、登录与登出。
type AuthHandler struct {
	authService services.AuthService
	blacklist   auth.TokenBlacklist
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(authService services.AuthService, blacklist auth.TokenBlacklist) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		blacklist:   blacklist,
	}
}

type registerRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Email          string `json:"email"`
	Nickname       string `json:"nickname"`
	Role           string `json:"role"`
	GraduationYear int    `json:"graduationYear"`
	Major          string `json:"major"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterHandler 处理新用户注册。注册成功后账号处于待审核状态。
func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "用户名和密码不能为空")
		return
	}

	user, err := h.authService.Register(r.Context(), services.RegisterInput{
		Username:       req.Username,
		Password:       req.Password,
		Email:          req.Email,
		Nickname:       req.Nickname,
		Role:           models.UserRole(req.Role),
		GraduationYear: req.GraduationYear,
		Major:          req.Major,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserAlreadyExists):
			writeJSONError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrInvalidRole):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("Error registering user %s: %v", req.Username, err)
			writeJSONError(w, http.StatusInternalServerError, "注册失败")
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"user":    user,
		"message": "注册成功,请等待管理员审核",
	})
}

// LoginHandler 处理登录并签发 JWT。
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		log.Printf("Error logging in user %s: %v", req.Username, err)
		writeJSONError(w, http.StatusInternalServerError, "登录失败")
		return
	}

	writeJSONResponse(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// LogoutHandler 将当前令牌的 jti 加入黑名单,使其在过期前即刻失效。
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "未认证的请求")
		return
	}
	if h.blacklist == nil || claims.ID == "" || claims.ExpiresAt == nil {
		writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已登出"})
		return
	}

	if err := h.blacklist.Add(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		log.Printf("Error blacklisting token %s: %v", claims.ID, err)
		writeJSONError(w, http.StatusInternalServerError, "登出失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已登出"})
}
