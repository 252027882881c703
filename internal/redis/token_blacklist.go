package redis

import (
	"context"
	"fmt"
	"time"

	"alumnet/internal/auth"

	"github.com/redis/go-redis/v9"
)

// redisTokenBlacklist 是 auth.TokenBlacklist 接口的 Redis 实现。
type redisTokenBlacklist struct {
	client *redis.Client
}

// NewRedisTokenBlacklist 创建一个新的 redisTokenBlacklist 实例。
func NewRedisTokenBlacklist(client *redis.Client) auth.TokenBlacklist {
	return &redisTokenBlacklist{client: client}
}

const blacklistKeyPrefix = "bl:jti:"

// Add 将 jti 加入黑名单，过期时间设为 Token 的原始过期时间点。
func (r *redisTokenBlacklist) Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error {
	duration := time.Until(originalTokenExpTime)

	if duration <= 0 {
		// Token 已经过期，JWT 验证本身会拒绝它，无需入黑名单。
		return nil
	}

	key := blacklistKeyPrefix + jti
	err := r.client.Set(ctx, key, "revoked", duration).Err()
	if err != nil {
		return fmt.Errorf("添加到 Redis 黑名单失败 for JTI %s: %w", jti, err)
	}
	return nil
}

// IsBlacklisted 检查 jti 是否在黑名单中。
func (r *redisTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	key := blacklistKeyPrefix + jti
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil // Key 不存在，不在黑名单中
	}
	if err != nil {
		return false, fmt.Errorf("从 Redis 黑名单检查失败 for JTI %s: %w", jti, err)
	}
	return val == "revoked", nil
}
