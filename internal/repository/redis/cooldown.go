package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const CooldownKeyPrefix = "cooldown"

// CooldownRepository 限制同一主体在窗口内重复触发，例如重发验证邮件
type CooldownRepository struct {
	rdb *redis.Client
}

func NewCooldownRepository(rdb *redis.Client) *CooldownRepository {
	return &CooldownRepository{rdb: rdb}
}

// Try 窗口内第一次调用返回 true
func (r *CooldownRepository) Try(ctx context.Context, scope, subject string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s", CooldownKeyPrefix, scope, subject)
	return r.rdb.SetNX(ctx, key, 1, window).Result()
}

// Reset 发送失败时撤销冷却，允许立即重试
func (r *CooldownRepository) Reset(ctx context.Context, scope, subject string) error {
	key := fmt.Sprintf("%s:%s:%s", CooldownKeyPrefix, scope, subject)
	return r.rdb.Del(ctx, key).Err()
}
