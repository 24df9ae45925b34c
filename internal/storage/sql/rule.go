package sql

import (
	"database/sql"
	"errors"
	"time"

	"mailrouter/backend/internal/domain"
)

// ========== ForwardingRule Repository ==========

// SaveRule 保存转发规则（插入或更新）。
func (s *Store) SaveRule(rule *domain.ForwardingRule) error {
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := s.rebind(`SELECT COUNT(*) FROM forwarding_rules WHERE id = ?`)
	var exists int
	if err := s.db.QueryRow(query, rule.ID).Scan(&exists); err != nil {
		return err
	}

	if exists > 0 {
		query = s.rebind(`
			UPDATE forwarding_rules
			SET keywords = ?, action = ?, priority = ?, is_active = ?, updated_at = ?
			WHERE id = ?
		`)
		_, err := s.db.Exec(query,
			rule.Keywords,
			rule.Action,
			rule.Priority,
			rule.IsActive,
			rule.UpdatedAt,
			rule.ID,
		)
		return err
	}

	query = s.rebind(`
		INSERT INTO forwarding_rules (id, user_id, keywords, action, priority, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		rule.ID,
		rule.UserID,
		rule.Keywords,
		rule.Action,
		rule.Priority,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	return err
}

// GetRule 根据 ID 获取规则。
func (s *Store) GetRule(id string) (*domain.ForwardingRule, error) {
	query := s.rebind(`
		SELECT id, user_id, keywords, action, priority, is_active, created_at, updated_at
		FROM forwarding_rules
		WHERE id = ?
	`)

	var rule domain.ForwardingRule
	err := s.db.QueryRow(query, id).Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Keywords,
		&rule.Action,
		&rule.Priority,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}

	return &rule, nil
}

// ListActiveRulesByUserID 返回用户的活跃规则，按求值顺序排列。
func (s *Store) ListActiveRulesByUserID(userID string) ([]domain.ForwardingRule, error) {
	query := s.rebind(`
		SELECT id, user_id, keywords, action, priority, is_active, created_at, updated_at
		FROM forwarding_rules
		WHERE user_id = ? AND is_active = ?
		ORDER BY priority ASC, created_at ASC
	`)
	return s.listRules(query, userID, true)
}

// ListRulesByUserID 返回用户的全部规则（含停用），按求值顺序排列。
func (s *Store) ListRulesByUserID(userID string) ([]domain.ForwardingRule, error) {
	query := s.rebind(`
		SELECT id, user_id, keywords, action, priority, is_active, created_at, updated_at
		FROM forwarding_rules
		WHERE user_id = ?
		ORDER BY priority ASC, created_at ASC
	`)
	return s.listRules(query, userID)
}

// CountRulesByUserID 统计用户的规则总数。
func (s *Store) CountRulesByUserID(userID string) (int, error) {
	query := s.rebind(`SELECT COUNT(*) FROM forwarding_rules WHERE user_id = ?`)
	var count int
	err := s.db.QueryRow(query, userID).Scan(&count)
	return count, err
}

// DeleteRule 删除指定规则。
func (s *Store) DeleteRule(id string) error {
	query := s.rebind(`DELETE FROM forwarding_rules WHERE id = ?`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (s *Store) listRules(query string, args ...interface{}) ([]domain.ForwardingRule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.ForwardingRule, 0)
	for rows.Next() {
		var rule domain.ForwardingRule
		if err := rows.Scan(
			&rule.ID,
			&rule.UserID,
			&rule.Keywords,
			&rule.Action,
			&rule.Priority,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}

	return result, rows.Err()
}
