package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailrouter/backend/internal/config"
	"mailrouter/backend/internal/domain"
)

var (
	// ErrAddressLimitReached 活跃地址数达到上限
	ErrAddressLimitReached = errors.New("address limit reached")
	// ErrGenerateAddress 无法生成唯一地址
	ErrGenerateAddress = errors.New("could not generate unique email address")
)

// AddressService 封装临时地址相关业务操作。
type AddressService struct {
	store domain.Store
	cfg   *config.AddressConfig
	clock domain.Clock
	log   *zap.Logger
}

// NewAddressService 创建临时地址服务。
func NewAddressService(store domain.Store, cfg *config.AddressConfig, log *zap.Logger) *AddressService {
	return &AddressService{
		store: store,
		cfg:   cfg,
		clock: time.Now,
		log:   log,
	}
}

// SetClock 替换服务使用的时钟，仅供测试。
func (s *AddressService) SetClock(clock domain.Clock) {
	s.clock = clock
}

// CreateAddressInput 创建临时地址的输入。
type CreateAddressInput struct {
	Purpose   string
	ExpiresAt *time.Time // 可选；缺省为创建时间 + 默认 TTL
}

// Create 为用户创建一个新的临时地址。
//
// 地址形如 temp-<8位十六进制>@<域名>，冲突时重新生成，最多尝试 10 次。
func (s *AddressService) Create(userID string, input CreateAddressInput) (*domain.TempAddress, error) {
	if s.cfg.MaxPerUser > 0 {
		count, err := s.store.CountActiveAddressesByUserID(userID)
		if err != nil {
			return nil, fmt.Errorf("count addresses: %w", err)
		}
		if count >= s.cfg.MaxPerUser {
			return nil, ErrAddressLimitReached
		}
	}

	now := s.clock().UTC()
	expiresAt := input.ExpiresAt
	if expiresAt == nil {
		t := now.Add(s.cfg.DefaultTTL)
		expiresAt = &t
	}

	for attempt := 0; attempt < 10; attempt++ {
		address := s.generateAddress()

		// 先查再插；唯一索引兜底并发下的冲突
		if _, err := s.store.GetActiveAddress(address); err == nil {
			continue
		}

		tempAddr := &domain.TempAddress{
			ID:        uuid.NewString(),
			UserID:    userID,
			Address:   address,
			Purpose:   input.Purpose,
			ExpiresAt: expiresAt,
			IsActive:  true,
			CreatedAt: now,
		}

		if err := s.store.SaveAddress(tempAddr); err != nil {
			s.log.Warn("failed to save generated address, retrying",
				zap.String("address", address),
				zap.Error(err),
			)
			continue
		}

		return tempAddr, nil
	}

	return nil, ErrGenerateAddress
}

// generateAddress 生成随机临时地址。
func (s *AddressService) generateAddress() string {
	uniqueID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("temp-%s@%s", uniqueID, s.cfg.Domain)
}

// List 返回用户的全部临时地址。
func (s *AddressService) List(userID string) ([]domain.TempAddress, error) {
	return s.store.ListAddressesByUserID(userID)
}

// Get 获取用户的单个临时地址。不属于该用户的地址视同不存在。
func (s *AddressService) Get(userID, addressID string) (*domain.TempAddress, error) {
	addr, err := s.store.GetAddress(addressID)
	if err != nil {
		return nil, err
	}
	if addr.UserID != userID {
		return nil, domain.ErrAddressNotFound
	}
	return addr, nil
}

// Deactivate 停用用户的临时地址。地址停用后不再接收邮件，但保留记录
// 供审计日志引用。
func (s *AddressService) Deactivate(userID, addressID string) error {
	addr, err := s.store.GetAddress(addressID)
	if err != nil {
		return err
	}
	if addr.UserID != userID {
		return domain.ErrAddressNotFound
	}
	return s.store.DeactivateAddress(addressID)
}
