package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/zhangzw218/EShop/internal/pkg/redis"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// RedisCurrentResultCache 把轮询热点结果放进 Redis，值是 JSON 快照
type RedisCurrentResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCurrentResultCache(client *redis.Client, ttl time.Duration) *RedisCurrentResultCache {
	return &RedisCurrentResultCache{client: client, ttl: ttl}
}

var _ port.CurrentResultCache = (*RedisCurrentResultCache)(nil)

func currentResultKey(planID, userID string) string {
	return fmt.Sprintf("eshop:flashsale:current-result:%s:%s", planID, userID)
}

func (c *RedisCurrentResultCache) Set(ctx context.Context, planID, userID string, item *port.CurrentResultCacheItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal current result: %w", err)
	}
	if err := c.client.GetClient().Set(ctx, currentResultKey(planID, userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set current result cache: %w", err)
	}
	return nil
}

func (c *RedisCurrentResultCache) Get(ctx context.Context, planID, userID string) (*port.CurrentResultCacheItem, bool, error) {
	data, err := c.client.GetClient().Get(ctx, currentResultKey(planID, userID)).Bytes()
	if errors.Is(err, redislib.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get current result cache: %w", err)
	}
	var item port.CurrentResultCacheItem
	if err := json.Unmarshal(data, &item); err != nil {
		// 缓存里有坏值就当未命中，由上层回源覆盖
		return nil, false, nil
	}
	return &item, true, nil
}

// RedisPreOrderTokenStore 预下单令牌，TTL 到期自动作废
type RedisPreOrderTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPreOrderTokenStore(client *redis.Client, ttl time.Duration) *RedisPreOrderTokenStore {
	return &RedisPreOrderTokenStore{client: client, ttl: ttl}
}

var _ port.PreOrderTokenStore = (*RedisPreOrderTokenStore)(nil)

func preOrderTokenKey(planID, userID string) string {
	return fmt.Sprintf("eshop:flashsale:preorder-token:%s:%s", planID, userID)
}

func (s *RedisPreOrderTokenStore) Put(ctx context.Context, planID, userID, token string) error {
	if err := s.client.GetClient().Set(ctx, preOrderTokenKey(planID, userID), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pre-order token: %w", err)
	}
	return nil
}

// Take 用 GETDEL 保证取出即销毁，同一令牌并发只有一个调用拿到值
func (s *RedisPreOrderTokenStore) Take(ctx context.Context, planID, userID string) (string, bool, error) {
	token, err := s.client.GetClient().GetDel(ctx, preOrderTokenKey(planID, userID)).Result()
	if errors.Is(err, redislib.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("take pre-order token: %w", err)
	}
	return token, true, nil
}
