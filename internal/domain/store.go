package domain

import (
	"errors"
	"time"
)

// 各存储实现共用的哨兵错误。
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrAddressNotFound = errors.New("address not found")
	ErrRuleNotFound    = errors.New("rule not found")
)

// Store 聚合所有存储接口
type Store interface {
	// ========== User Repository ==========
	CreateUser(user *User) error
	GetUserByID(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	UpdateUser(user *User) error
	UpdateLastLogin(userID string) error

	// ========== TempAddress Repository ==========
	SaveAddress(address *TempAddress) error
	GetAddress(id string) (*TempAddress, error)
	// GetActiveAddress 按地址查找活跃的临时地址；不存在或已停用时返回
	// ErrAddressNotFound。
	GetActiveAddress(address string) (*TempAddress, error)
	ListAddressesByUserID(userID string) ([]TempAddress, error)
	CountAddressesByUserID(userID string) (int, error)
	CountActiveAddressesByUserID(userID string) (int, error)
	// DeactivateAddress 将地址置为停用。对已停用地址是幂等的空操作。
	DeactivateAddress(id string) error

	// ========== ForwardingRule Repository ==========
	SaveRule(rule *ForwardingRule) error
	GetRule(id string) (*ForwardingRule, error)
	// ListActiveRulesByUserID 返回用户的活跃规则，按 priority 升序、
	// created_at 升序排列。该顺序即规则求值顺序。
	ListActiveRulesByUserID(userID string) ([]ForwardingRule, error)
	ListRulesByUserID(userID string) ([]ForwardingRule, error)
	CountRulesByUserID(userID string) (int, error)
	DeleteRule(id string) error

	// ========== EmailLog Repository ==========
	AppendEmailLog(log *EmailLog) error
	ListEmailLogsByUserID(userID string, limit int) ([]EmailLog, error)
	CountEmailLogsByUserID(userID string, actionTaken string) (int, error)

	// ========== Lifecycle ==========
	Health() error
	Close() error
}

// Clock 提供当前时间，测试中可替换为固定时钟。
type Clock func() time.Time
