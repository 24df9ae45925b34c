package sql

import (
	"database/sql"
	"errors"
	"time"

	"mailrouter/backend/internal/domain"
)

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	query := s.rebind(`
		INSERT INTO users (id, email, password_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	query := s.rebind(`
		SELECT id, email, password_hash, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE id = ?
	`)
	return s.scanUser(s.db.QueryRow(query, id))
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	query := s.rebind(`
		SELECT id, email, password_hash, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE email = ?
	`)
	return s.scanUser(s.db.QueryRow(query, email))
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	query := s.rebind(`
		UPDATE users
		SET email = ?, password_hash = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := s.db.Exec(query,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		time.Now().UTC(),
		user.ID,
	)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	query := s.rebind(`UPDATE users SET last_login_at = ? WHERE id = ?`)
	_, err := s.db.Exec(query, time.Now().UTC(), userID)
	return err
}

func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return &user, nil
}
