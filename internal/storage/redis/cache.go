package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mailrouter/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache 基于 Redis 的分流缓存。
//
// 缓存两类数据：AI 判定结果（同一发件人+主题的重复邮件跳过 AI 调用）
// 和仪表盘统计（降低高频轮询的数据库压力）。缓存只是加速层，
// 任何 Redis 错误都不应中断分流流程。
type Cache struct {
	client *goredis.Client
}

// NewCache 创建缓存实例
func NewCache(client *Client) *Cache {
	return &Cache{client: client.Client()}
}

// ========== AI 判定缓存 ==========

// verdictKey 以用户与 发件人+主题 的摘要作为缓存键。
func verdictKey(userID, sender, subject string) string {
	sum := sha256.Sum256([]byte(sender + "\x00" + subject))
	return fmt.Sprintf("verdict:%s:%s", userID, hex.EncodeToString(sum[:16]))
}

// CacheVerdict 缓存一次 AI 判定结果。
func (c *Cache) CacheVerdict(ctx context.Context, userID, sender, subject string, decision *domain.Decision, ttl time.Duration) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, verdictKey(userID, sender, subject), data, ttl).Err()
}

// GetCachedVerdict 获取缓存的 AI 判定结果。
func (c *Cache) GetCachedVerdict(ctx context.Context, userID, sender, subject string) (*domain.Decision, error) {
	data, err := c.client.Get(ctx, verdictKey(userID, sender, subject)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var decision domain.Decision
	if err := json.Unmarshal([]byte(data), &decision); err != nil {
		return nil, err
	}

	return &decision, nil
}

// ========== 仪表盘统计缓存 ==========

// CacheDashboardStats 缓存用户的仪表盘统计。
func (c *Cache) CacheDashboardStats(ctx context.Context, userID string, stats *domain.DashboardStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("stats:%s", userID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetCachedDashboardStats 获取缓存的仪表盘统计。
func (c *Cache) GetCachedDashboardStats(ctx context.Context, userID string) (*domain.DashboardStats, error) {
	key := fmt.Sprintf("stats:%s", userID)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}

// InvalidateDashboardStats 使用户的统计缓存失效。
//
// 每次写入审计日志或变更地址后调用，保证仪表盘及时反映新动作。
func (c *Cache) InvalidateDashboardStats(ctx context.Context, userID string) error {
	key := fmt.Sprintf("stats:%s", userID)
	return c.client.Del(ctx, key).Err()
}
