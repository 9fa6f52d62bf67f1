package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/file-manager-api/internal/models"
)

// AccessLogRepository records file reads.
type AccessLogRepository struct {
	db *sqlx.DB
}

// NewAccessLogRepository constructs the repository.
func NewAccessLogRepository(db *sqlx.DB) *AccessLogRepository {
	return &AccessLogRepository{db: db}
}

// Create appends an access log row.
func (r *AccessLogRepository) Create(ctx context.Context, entry *models.FileAccessLog) error {
	if entry.AccessedAt.IsZero() {
		entry.AccessedAt = time.Now().UTC()
	}
	const query = `INSERT INTO file_access_logs (file_id, user_id, access_type, ip_address, user_agent, accessed_at)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, entry.FileID, entry.UserID, entry.AccessType, entry.IPAddress, entry.UserAgent, entry.AccessedAt).Scan(&entry.ID); err != nil {
		return fmt.Errorf("create access log: %w", err)
	}
	return nil
}

// ListRecent returns the newest access rows for a file.
func (r *AccessLogRepository) ListRecent(ctx context.Context, fileID string, limit int) ([]models.FileAccessLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	const query = `SELECT id, file_id, user_id, access_type, ip_address, user_agent, accessed_at
	FROM file_access_logs WHERE file_id = $1 ORDER BY accessed_at DESC, id DESC LIMIT $2`
	logs := []models.FileAccessLog{}
	if err := r.db.SelectContext(ctx, &logs, query, fileID, limit); err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	return logs, nil
}
