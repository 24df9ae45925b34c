package sql

import (
	"database/sql"
	"errors"
	"time"

	"mailrouter/backend/internal/domain"
)

// ========== TempAddress Repository ==========

// SaveAddress 保存临时地址（插入或更新）。
func (s *Store) SaveAddress(address *domain.TempAddress) error {
	if address.CreatedAt.IsZero() {
		address.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		SELECT COUNT(*) FROM temp_addresses WHERE id = ?
	`)
	var exists int
	if err := s.db.QueryRow(query, address.ID).Scan(&exists); err != nil {
		return err
	}

	if exists > 0 {
		query = s.rebind(`
			UPDATE temp_addresses
			SET purpose = ?, expires_at = ?, is_active = ?
			WHERE id = ?
		`)
		_, err := s.db.Exec(query, address.Purpose, address.ExpiresAt, address.IsActive, address.ID)
		return err
	}

	query = s.rebind(`
		INSERT INTO temp_addresses (id, user_id, address, purpose, expires_at, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		address.ID,
		address.UserID,
		address.Address,
		address.Purpose,
		address.ExpiresAt,
		address.IsActive,
		address.CreatedAt,
	)
	return err
}

// GetAddress 根据 ID 获取临时地址。
func (s *Store) GetAddress(id string) (*domain.TempAddress, error) {
	query := s.rebind(`
		SELECT id, user_id, address, purpose, expires_at, is_active, created_at
		FROM temp_addresses
		WHERE id = ?
	`)
	return s.scanAddress(s.db.QueryRow(query, id))
}

// GetActiveAddress 根据完整地址获取活跃的临时地址。
func (s *Store) GetActiveAddress(address string) (*domain.TempAddress, error) {
	query := s.rebind(`
		SELECT id, user_id, address, purpose, expires_at, is_active, created_at
		FROM temp_addresses
		WHERE address = ? AND is_active = ?
	`)
	return s.scanAddress(s.db.QueryRow(query, address, true))
}

// ListAddressesByUserID 返回指定用户的全部临时地址，按创建时间倒序。
func (s *Store) ListAddressesByUserID(userID string) ([]domain.TempAddress, error) {
	query := s.rebind(`
		SELECT id, user_id, address, purpose, expires_at, is_active, created_at
		FROM temp_addresses
		WHERE user_id = ?
		ORDER BY created_at DESC
	`)
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.TempAddress, 0)
	for rows.Next() {
		var addr domain.TempAddress
		var expiresAt sql.NullTime
		if err := rows.Scan(
			&addr.ID,
			&addr.UserID,
			&addr.Address,
			&addr.Purpose,
			&expiresAt,
			&addr.IsActive,
			&addr.CreatedAt,
		); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			addr.ExpiresAt = &expiresAt.Time
		}
		result = append(result, addr)
	}

	return result, rows.Err()
}

// CountAddressesByUserID 统计指定用户的临时地址总数。
func (s *Store) CountAddressesByUserID(userID string) (int, error) {
	query := s.rebind(`SELECT COUNT(*) FROM temp_addresses WHERE user_id = ?`)
	var count int
	err := s.db.QueryRow(query, userID).Scan(&count)
	return count, err
}

// CountActiveAddressesByUserID 统计指定用户的活跃临时地址数。
func (s *Store) CountActiveAddressesByUserID(userID string) (int, error) {
	query := s.rebind(`SELECT COUNT(*) FROM temp_addresses WHERE user_id = ? AND is_active = ?`)
	var count int
	err := s.db.QueryRow(query, userID, true).Scan(&count)
	return count, err
}

// DeactivateAddress 停用指定地址。对已停用地址是幂等的空操作。
func (s *Store) DeactivateAddress(id string) error {
	query := s.rebind(`SELECT COUNT(*) FROM temp_addresses WHERE id = ?`)
	var exists int
	if err := s.db.QueryRow(query, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrAddressNotFound
	}

	query = s.rebind(`UPDATE temp_addresses SET is_active = ? WHERE id = ?`)
	_, err := s.db.Exec(query, false, id)
	return err
}

func (s *Store) scanAddress(row *sql.Row) (*domain.TempAddress, error) {
	var addr domain.TempAddress
	var expiresAt sql.NullTime

	err := row.Scan(
		&addr.ID,
		&addr.UserID,
		&addr.Address,
		&addr.Purpose,
		&expiresAt,
		&addr.IsActive,
		&addr.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAddressNotFound
	}
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		addr.ExpiresAt = &expiresAt.Time
	}

	return &addr, nil
}
