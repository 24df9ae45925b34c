package sql

import (
	"time"

	"mailrouter/backend/internal/domain"
)

// ========== EmailLog Repository ==========

// AppendEmailLog 追加一条审计日志。日志只增不改。
func (s *Store) AppendEmailLog(log *domain.EmailLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO email_logs (id, temp_address_id, sender_email, subject, body_preview,
		                        action_taken, confidence, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		log.ID,
		log.TempAddressID,
		log.SenderEmail,
		log.Subject,
		log.BodyPreview,
		log.ActionTaken,
		log.Confidence,
		log.Reasoning,
		log.CreatedAt,
	)
	return err
}

// ListEmailLogsByUserID 返回用户的审计日志，按时间倒序，最多 limit 条。
//
// 日志通过 temp_addresses 关联到用户。
func (s *Store) ListEmailLogsByUserID(userID string, limit int) ([]domain.EmailLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.rebind(`
		SELECT l.id, l.temp_address_id, l.sender_email, l.subject, l.body_preview,
		       l.action_taken, l.confidence, l.reasoning, l.created_at
		FROM email_logs l
		JOIN temp_addresses a ON a.id = l.temp_address_id
		WHERE a.user_id = ?
		ORDER BY l.created_at DESC
		LIMIT ?
	`)
	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.EmailLog, 0)
	for rows.Next() {
		var log domain.EmailLog
		if err := rows.Scan(
			&log.ID,
			&log.TempAddressID,
			&log.SenderEmail,
			&log.Subject,
			&log.BodyPreview,
			&log.ActionTaken,
			&log.Confidence,
			&log.Reasoning,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, log)
	}

	return result, rows.Err()
}

// CountEmailLogsByUserID 统计用户的审计日志数量。
//
// actionTaken 非空时只统计该动作的日志。
func (s *Store) CountEmailLogsByUserID(userID string, actionTaken string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM email_logs l
		JOIN temp_addresses a ON a.id = l.temp_address_id
		WHERE a.user_id = ?
	`
	args := []interface{}{userID}

	if actionTaken != "" {
		query += " AND l.action_taken = ?"
		args = append(args, actionTaken)
	}

	var count int
	err := s.db.QueryRow(s.rebind(query), args...).Scan(&count)
	return count, err
}
