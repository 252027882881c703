package auth

import (
	"context"
	"fmt"
	"time"

	"alumnet/internal/config"
	"alumnet/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims 是 JWT 中的自定义声明，嵌入了 jwt.RegisteredClaims。
// 除了用户 ID 和用户名，还携带用户角色，供路由级别的权限判断使用。
// 审核状态 (Approved) 不放在 Claims 中，因为它可能在 Token 有效期内
// 被管理员改变，必须在每次请求时查库确认。
type Claims struct {
	UserID   uint            `json:"userId"`
	Username string          `json:"username"`
	Role     models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken 为指定用户生成一个新的 JWT。
func GenerateToken(user *models.User, authCfg config.AuthConfig) (string, error) {
	// 生成 JWT ID (jti)，登出黑名单依赖它
	jwtID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("生成 JWT ID 失败: %w", err)
	}

	expirationTime := time.Now().Add(authCfg.JWTExpiry)
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			ID:        jwtID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "alumnet-server",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("生成 JWT 失败: %w", err)
	}
	return tokenString, nil
}

// ValidateToken 验证给定的 JWT 字符串的有效性。
// 如果令牌有效且不在黑名单中，返回其 Claims。
// blacklist 可以为 nil，此时跳过吊销检查（例如在测试中）。
func ValidateToken(ctx context.Context, tokenString string, jwtKey string, blacklist TokenBlacklist) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 确保签名算法是我们期望的
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名算法: %v", token.Header["alg"])
		}
		return []byte(jwtKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("解析或验证 JWT 失败: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("JWT 无效")
	}

	if blacklist != nil {
		if claims.ID == "" {
			return nil, fmt.Errorf("JWT 缺少 JTI (ID) 声明，无法检查黑名单")
		}
		isRevoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			// 黑名单不可用时选择拒绝而不是放行
			return nil, fmt.Errorf("检查 Token 黑名单失败: %w", err)
		}
		if isRevoked {
			return nil, fmt.Errorf("JWT 已被吊销")
		}
	}

	return claims, nil
}
