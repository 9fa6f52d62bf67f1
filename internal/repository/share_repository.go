package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/file-manager-api/internal/models"
)

// ShareRepository persists share link grants.
type ShareRepository struct {
	db *sqlx.DB
}

// NewShareRepository constructs the repository.
func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Create stores a share link.
func (r *ShareRepository) Create(ctx context.Context, link *models.ShareLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO share_links (id, file_id, created_by, expires_at, is_active, access_count, created_at)
	VALUES (:id, :file_id, :created_by, :expires_at, :is_active, :access_count, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create share link: %w", err)
	}
	return nil
}

// GetByID fetches one share link.
func (r *ShareRepository) GetByID(ctx context.Context, id string) (*models.ShareLink, error) {
	const query = `SELECT id, file_id, created_by, expires_at, is_active, access_count, created_at FROM share_links WHERE id = $1`
	var link models.ShareLink
	if err := r.db.GetContext(ctx, &link, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get share link: %w", err)
	}
	return &link, nil
}

// ListByFile returns the links created for a file, newest first.
func (r *ShareRepository) ListByFile(ctx context.Context, fileID, ownerID string) ([]models.ShareLink, error) {
	const query = `SELECT id, file_id, created_by, expires_at, is_active, access_count, created_at
	FROM share_links WHERE file_id = $1 AND created_by = $2 ORDER BY created_at DESC`
	links := []models.ShareLink{}
	if err := r.db.SelectContext(ctx, &links, query, fileID, ownerID); err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	return links, nil
}

// Revoke deactivates a link created by ownerID. It returns sql.ErrNoRows when no such link exists.
func (r *ShareRepository) Revoke(ctx context.Context, id, ownerID string) error {
	const query = `UPDATE share_links SET is_active = FALSE WHERE id = $1 AND created_by = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke share link rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementAccess counts one access through the link.
func (r *ShareRepository) IncrementAccess(ctx context.Context, id string) error {
	const query = `UPDATE share_links SET access_count = access_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment share access: %w", err)
	}
	return nil
}
