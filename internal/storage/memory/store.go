package memory

import (
	"errors"
	"sort"
	"sync"
	"time"

	"mailrouter/backend/internal/domain"
)

// Store 使用内存保存用户、临时地址、规则与审计日志，主要用于开发验证与测试。
type Store struct {
	mu        sync.RWMutex
	users     map[string]*domain.User           // userID -> user
	byEmail   map[string]string                 // email -> userID
	addresses map[string]*domain.TempAddress    // addressID -> address
	byAddress map[string]string                 // address -> addressID
	rules     map[string]*domain.ForwardingRule // ruleID -> rule
	logs      []*domain.EmailLog                // 追加顺序即写入顺序

	clock domain.Clock
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:     make(map[string]*domain.User),
		byEmail:   make(map[string]string),
		addresses: make(map[string]*domain.TempAddress),
		byAddress: make(map[string]string),
		rules:     make(map[string]*domain.ForwardingRule),
		logs:      make([]*domain.EmailLog, 0),
		clock:     time.Now,
	}
}

// SetClock 替换存储使用的时钟，仅供测试。
func (s *Store) SetClock(clock domain.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		return errors.New("user ID is required")
	}

	// 检查邮箱是否已存在
	if _, exists := s.byEmail[user.Email]; exists {
		return domain.ErrEmailExists
	}

	// 如果时间戳为零值，则设置为当前时间
	now := s.clock().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID

	return nil
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	copied := *user
	return &copied, nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	user, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	copied := *user
	return &copied, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}

	if old.Email != user.Email {
		if _, exists := s.byEmail[user.Email]; exists {
			return domain.ErrEmailExists
		}
		delete(s.byEmail, old.Email)
		s.byEmail[user.Email] = user.ID
	}

	user.UpdatedAt = s.clock().UTC()
	s.users[user.ID] = user

	return nil
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}

	now := s.clock().UTC()
	user.LastLoginAt = &now
	user.UpdatedAt = now

	return nil
}

// ========== TempAddress Repository ==========

// SaveAddress 保存临时地址。
func (s *Store) SaveAddress(address *domain.TempAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 地址唯一，允许同一条记录重复保存（更新）
	if existingID, ok := s.byAddress[address.Address]; ok && existingID != address.ID {
		return domain.ErrEmailExists
	}

	if address.CreatedAt.IsZero() {
		address.CreatedAt = s.clock().UTC()
	}

	s.addresses[address.ID] = address
	s.byAddress[address.Address] = address.ID
	return nil
}

// GetAddress 根据 ID 获取临时地址。
func (s *Store) GetAddress(id string) (*domain.TempAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	address, ok := s.addresses[id]
	if !ok {
		return nil, domain.ErrAddressNotFound
	}

	copied := *address
	return &copied, nil
}

// GetActiveAddress 根据完整地址获取活跃的临时地址。
//
// 已停用的地址视同不存在。
func (s *Store) GetActiveAddress(address string) (*domain.TempAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, domain.ErrAddressNotFound
	}

	addr, ok := s.addresses[id]
	if !ok || !addr.IsActive {
		return nil, domain.ErrAddressNotFound
	}

	copied := *addr
	return &copied, nil
}

// ListAddressesByUserID 返回指定用户的全部临时地址，按创建时间倒序。
func (s *Store) ListAddressesByUserID(userID string) ([]domain.TempAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.TempAddress, 0)
	for _, addr := range s.addresses {
		if addr.UserID == userID {
			result = append(result, *addr)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// CountAddressesByUserID 统计指定用户的临时地址总数。
func (s *Store) CountAddressesByUserID(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, addr := range s.addresses {
		if addr.UserID == userID {
			count++
		}
	}
	return count, nil
}

// CountActiveAddressesByUserID 统计指定用户的活跃临时地址数。
func (s *Store) CountActiveAddressesByUserID(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, addr := range s.addresses {
		if addr.UserID == userID && addr.IsActive {
			count++
		}
	}
	return count, nil
}

// DeactivateAddress 停用指定地址。对已停用地址是幂等的空操作。
func (s *Store) DeactivateAddress(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.addresses[id]
	if !ok {
		return domain.ErrAddressNotFound
	}

	addr.IsActive = false
	return nil
}

// ========== ForwardingRule Repository ==========

// SaveRule 保存转发规则。
func (s *Store) SaveRule(rule *domain.ForwardingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	s.rules[rule.ID] = rule
	return nil
}

// GetRule 根据 ID 获取规则。
//
// 返回副本：调用方在写回（SaveRule）之前的字段修改不会影响已存状态。
func (s *Store) GetRule(id string) (*domain.ForwardingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}

	copied := *rule
	return &copied, nil
}

// ListActiveRulesByUserID 返回用户的活跃规则，按求值顺序排列。
func (s *Store) ListActiveRulesByUserID(userID string) ([]domain.ForwardingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ForwardingRule, 0)
	for _, rule := range s.rules {
		if rule.UserID == userID && rule.IsActive {
			result = append(result, *rule)
		}
	}

	sortRules(result)
	return result, nil
}

// ListRulesByUserID 返回用户的全部规则（含停用），按求值顺序排列。
func (s *Store) ListRulesByUserID(userID string) ([]domain.ForwardingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ForwardingRule, 0)
	for _, rule := range s.rules {
		if rule.UserID == userID {
			result = append(result, *rule)
		}
	}

	sortRules(result)
	return result, nil
}

// CountRulesByUserID 统计用户的规则总数。
func (s *Store) CountRulesByUserID(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rule := range s.rules {
		if rule.UserID == userID {
			count++
		}
	}
	return count, nil
}

// DeleteRule 删除指定规则。
func (s *Store) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return domain.ErrRuleNotFound
	}

	delete(s.rules, id)
	return nil
}

// sortRules 按 priority 升序、created_at 升序排列。
func sortRules(rules []domain.ForwardingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}

// ========== EmailLog Repository ==========

// AppendEmailLog 追加一条审计日志。日志只增不改。
func (s *Store) AppendEmailLog(log *domain.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log.CreatedAt.IsZero() {
		log.CreatedAt = s.clock().UTC()
	}

	entry := *log
	s.logs = append(s.logs, &entry)
	return nil
}

// ListEmailLogsByUserID 返回用户的审计日志，按时间倒序，最多 limit 条。
//
// 日志通过 TempAddressID 归属到用户。
func (s *Store) ListEmailLogsByUserID(userID string, limit int) ([]domain.EmailLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.EmailLog, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		log := s.logs[i]
		addr, ok := s.addresses[log.TempAddressID]
		if !ok || addr.UserID != userID {
			continue
		}
		result = append(result, *log)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

// CountEmailLogsByUserID 统计用户的审计日志数量。
//
// actionTaken 非空时只统计该动作的日志。
func (s *Store) CountEmailLogsByUserID(userID string, actionTaken string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, log := range s.logs {
		addr, ok := s.addresses[log.TempAddressID]
		if !ok || addr.UserID != userID {
			continue
		}
		if actionTaken != "" && log.ActionTaken != actionTaken {
			continue
		}
		count++
	}
	return count, nil
}

// ========== 工具方法 ==========

// Health 健康检查
func (s *Store) Health() error {
	// 内存存储总是健康的
	return nil
}

// Close 关闭存储连接
func (s *Store) Close() error {
	// 内存存储不需要关闭连接
	return nil
}
