package middleware

import (
	"context"
	"net/http"
	"strings"

	"alumnet/internal/auth"
	"alumnet/internal/models"
	"alumnet/internal/storage"

	"github.com/gorilla/mux"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

// UserIDKey 是用于在上下文中存储用户ID的键。
const UserIDKey contextKey = "userID"

// UsernameKey 是用于在上下文中存储用户名的键。
const UsernameKey contextKey = "username"

// ClaimsKey 是用于在上下文中存储完整 JWT Claims 的键。
const ClaimsKey contextKey = "claims"

// AuthMiddleware 返回一个 mux 中间件：验证 JWT（含黑名单检查），
// 并把调用者身份写入请求上下文。核心服务层永远通过显式参数接收
// callerID，而不是在内部读取全局状态；这里是身份注入的唯一入口。
func AuthMiddleware(jwtKey string, blacklist auth.TokenBlacklist) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "请求未包含授权令牌", http.StatusUnauthorized)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				http.Error(w, "授权头部格式无效", http.StatusUnauthorized)
				return
			}

			tokenString := headerParts[1]
			claims, err := auth.ValidateToken(r.Context(), tokenString, jwtKey, blacklist)
			if err != nil {
				http.Error(w, "令牌无效", http.StatusUnauthorized)
				return
			}

			// 将用户信息存入请求上下文
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireApproved 返回一个 mux 中间件：只放行已通过管理员审核的账号。
// 审核状态可能在 Token 有效期内被改变，所以这里按请求查库，
// 而不是信任签发时写进 Token 的快照。
func RequireApproved(userRepo storage.UserRepository) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "请求未认证", http.StatusUnauthorized)
				return
			}

			user, err := userRepo.GetByID(r.Context(), userID)
			if err != nil {
				http.Error(w, "无法确认账号状态", http.StatusUnauthorized)
				return
			}
			if !user.Approved {
				http.Error(w, "账号尚未通过审核", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin 返回一个 mux 中间件：只放行管理员角色。
// 必须在 AuthMiddleware 之后使用。
func RequireAdmin() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaimsFromContext(r.Context())
			if !ok || claims.Role != models.RoleAdmin {
				http.Error(w, "需要管理员权限", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserIDFromContext 从上下文中获取用户ID。
// 如果用户ID不存在或类型不正确，返回0和false。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetUsernameFromContext 从上下文中获取用户名。
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetClaimsFromContext 从上下文中获取完整的 JWT Claims。
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}
