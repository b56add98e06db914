package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedKeyPrefix = "auth:revoked:"

// SessionCache 基于 Redis 的令牌注销列表
type SessionCache struct {
	client *redis.Client
}

// NewSessionCache 创建注销列表
func NewSessionCache(client *redis.Client) *SessionCache {
	return &SessionCache{client: client}
}

// Revoke 写入注销标记，过期时间与令牌一致
func (c *SessionCache) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked 检查令牌是否已注销
func (c *SessionCache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}
