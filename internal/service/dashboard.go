package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/storage/redis"
)

// statsCacheTTL 仪表盘统计的缓存时长。统计接口被前端高频轮询，
// 短缓存即可挡掉绝大部分数据库查询。
const statsCacheTTL = 30 * time.Second

// DashboardService 聚合用户仪表盘统计数据。
type DashboardService struct {
	store domain.Store
	cache *redis.Cache // 可选；nil 时每次都查库
	log   *zap.Logger
}

// NewDashboardService 创建仪表盘服务。cache 可以为 nil。
func NewDashboardService(store domain.Store, cache *redis.Cache, log *zap.Logger) *DashboardService {
	return &DashboardService{
		store: store,
		cache: cache,
		log:   log,
	}
}

// Stats 返回用户的仪表盘统计：地址数量、转发/删除计数和最近 10 条活动。
func (s *DashboardService) Stats(ctx context.Context, userID string) (*domain.DashboardStats, error) {
	if s.cache != nil {
		if stats, err := s.cache.GetCachedDashboardStats(ctx, userID); err == nil {
			return stats, nil
		}
	}

	total, err := s.store.CountAddressesByUserID(userID)
	if err != nil {
		return nil, err
	}

	active, err := s.store.CountActiveAddressesByUserID(userID)
	if err != nil {
		return nil, err
	}

	forwarded, err := s.store.CountEmailLogsByUserID(userID, domain.LogActionForward)
	if err != nil {
		return nil, err
	}

	deleted, err := s.store.CountEmailLogsByUserID(userID, domain.LogActionDelete)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.ListEmailLogsByUserID(userID, 10)
	if err != nil {
		return nil, err
	}

	stats := &domain.DashboardStats{
		TotalAddresses:  total,
		ActiveAddresses: active,
		EmailsForwarded: forwarded,
		EmailsDeleted:   deleted,
		RecentActivity:  recent,
	}

	if s.cache != nil {
		if err := s.cache.CacheDashboardStats(ctx, userID, stats, statsCacheTTL); err != nil {
			s.log.Warn("failed to cache dashboard stats", zap.Error(err))
		}
	}

	return stats, nil
}

// Logs 返回用户的审计日志，按时间倒序。
func (s *DashboardService) Logs(userID string, limit int) ([]domain.EmailLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListEmailLogsByUserID(userID, limit)
}
