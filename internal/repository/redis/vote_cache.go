package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	VoteStateTTL       = 24 * time.Hour
	VoteStateKeyPrefix = "vote:state"
)

// VoteCacheRepository 缓存 (想法, 用户) 是否已投票；只是读优化，数据库为准
type VoteCacheRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewVoteCacheRepository(rdb *redis.Client) *VoteCacheRepository {
	return &VoteCacheRepository{rdb: rdb, ttl: VoteStateTTL}
}

func (r *VoteCacheRepository) key(ideaID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", VoteStateKeyPrefix, ideaID, userID)
}

// Get 返回 (voted, hit, err)
func (r *VoteCacheRepository) Get(ctx context.Context, ideaID, userID string) (bool, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(ideaID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return v == "1", true, nil
}

func stateValue(voted bool) string {
	if voted {
		return "1"
	}
	return "0"
}

// Set 写路径：在投票事务持锁期间调用，覆盖旧状态
func (r *VoteCacheRepository) Set(ctx context.Context, ideaID, userID string, voted bool) error {
	return r.rdb.Set(ctx, r.key(ideaID, userID), stateValue(voted), r.ttl).Err()
}

// Fill 读路径回源后回填，已有值（写路径写入的）不覆盖
func (r *VoteCacheRepository) Fill(ctx context.Context, ideaID, userID string, voted bool) error {
	return r.rdb.SetNX(ctx, r.key(ideaID, userID), stateValue(voted), r.ttl).Err()
}

// Invalidate 写缓存失败时删除，交给读侧回源
func (r *VoteCacheRepository) Invalidate(ctx context.Context, ideaID, userID string) error {
	return r.rdb.Del(ctx, r.key(ideaID, userID)).Err()
}
