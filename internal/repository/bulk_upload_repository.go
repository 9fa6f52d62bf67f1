package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/file-manager-api/internal/models"
)

const bulkJobColumns = `id, owner_id, status, total_items, attempts, error_message, created_at, updated_at, finished_at`

const bulkItemColumns = `job_id, position, original_filename, declared_size, mime_type, staging_key, file_id, status,
       content_hash, error_code, error_message, updated_at`

// BulkUploadRepository persists bulk upload jobs and their per-file items.
type BulkUploadRepository struct {
	db *sqlx.DB
}

// NewBulkUploadRepository constructs the repository.
func NewBulkUploadRepository(db *sqlx.DB) *BulkUploadRepository {
	return &BulkUploadRepository{db: db}
}

// Create inserts the job and all of its items in one transaction.
func (r *BulkUploadRepository) Create(ctx context.Context, job *models.BulkUploadJob, items []models.BulkUploadItem) (err error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.BulkUploadQueued
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	job.TotalItems = len(items)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk upload transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const jobQuery = `INSERT INTO bulk_upload_jobs (id, owner_id, status, total_items, attempts, error_message, created_at, updated_at, finished_at)
VALUES (:id, :owner_id, :status, :total_items, :attempts, :error_message, :created_at, :updated_at, :finished_at)`
	if _, err = tx.NamedExecContext(ctx, jobQuery, job); err != nil {
		return fmt.Errorf("create bulk upload job: %w", err)
	}

	const itemQuery = `INSERT INTO bulk_upload_items
(job_id, position, original_filename, declared_size, mime_type, staging_key, file_id, status, content_hash, error_code, error_message, updated_at)
VALUES (:job_id, :position, :original_filename, :declared_size, :mime_type, :staging_key, :file_id, :status, :content_hash, :error_code, :error_message, :updated_at)`
	for i := range items {
		items[i].JobID = job.ID
		if items[i].FileID == "" {
			items[i].FileID = uuid.NewString()
		}
		if items[i].Status == "" {
			items[i].Status = models.BulkItemPending
		}
		items[i].UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, itemQuery, &items[i]); err != nil {
			return fmt.Errorf("create bulk upload item %d: %w", items[i].Position, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk upload job: %w", err)
	}
	return nil
}

// GetJob returns a job row by its identifier.
func (r *BulkUploadRepository) GetJob(ctx context.Context, id string) (*models.BulkUploadJob, error) {
	query := `SELECT ` + bulkJobColumns + ` FROM bulk_upload_jobs WHERE id = $1`
	var job models.BulkUploadJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get bulk upload job: %w", err)
	}
	return &job, nil
}

// ListItems returns a job's items in submission order.
func (r *BulkUploadRepository) ListItems(ctx context.Context, jobID string) ([]models.BulkUploadItem, error) {
	query := `SELECT ` + bulkItemColumns + ` FROM bulk_upload_items WHERE job_id = $1 ORDER BY position ASC`
	items := []models.BulkUploadItem{}
	if err := r.db.SelectContext(ctx, &items, query, jobID); err != nil {
		return nil, fmt.Errorf("list bulk upload items: %w", err)
	}
	return items, nil
}

// UpdateBulkJobParams defines the mutable job fields.
type UpdateBulkJobParams struct {
	Status           *models.BulkUploadStatus
	ErrorMessage     *string
	FinishedAt       *time.Time
	IncrementAttempt bool
}

// UpdateJob persists the provided changes for a job row.
func (r *BulkUploadRepository) UpdateJob(ctx context.Context, id string, params UpdateBulkJobParams) error {
	set := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}

	if params.Status != nil {
		args = append(args, *params.Status)
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.ErrorMessage != nil {
		args = append(args, *params.ErrorMessage)
		set = append(set, fmt.Sprintf("error_message = $%d", len(args)))
	}
	if params.FinishedAt != nil {
		args = append(args, *params.FinishedAt)
		set = append(set, fmt.Sprintf("finished_at = $%d", len(args)))
	}
	if params.IncrementAttempt {
		set = append(set, "attempts = attempts + 1")
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE bulk_upload_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update bulk upload job: %w", err)
	}
	return nil
}

// UpdateItem records an item outcome.
func (r *BulkUploadRepository) UpdateItem(ctx context.Context, item *models.BulkUploadItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bulk_upload_items SET status = :status, content_hash = :content_hash, error_code = :error_code,
error_message = :error_message, staging_key = :staging_key, mime_type = :mime_type, updated_at = :updated_at
WHERE job_id = :job_id AND position = :position`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update bulk upload item %d: %w", item.Position, err)
	}
	return nil
}

// FailPendingItems marks every still pending item of a job as failed.
func (r *BulkUploadRepository) FailPendingItems(ctx context.Context, jobID, code, message string) (int64, error) {
	const query = `UPDATE bulk_upload_items SET status = $2, error_code = $3, error_message = $4, updated_at = $5
WHERE job_id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, jobID, models.BulkItemFailed, code, message, time.Now().UTC(), models.BulkItemPending)
	if err != nil {
		return 0, fmt.Errorf("fail pending bulk items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail pending bulk items rows: %w", err)
	}
	return affected, nil
}

// ListUnfinished fetches queued or processing jobs, oldest first. Used for cold start recovery.
func (r *BulkUploadRepository) ListUnfinished(ctx context.Context, limit int) ([]models.BulkUploadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + bulkJobColumns + ` FROM bulk_upload_jobs WHERE status IN ($1, $2) ORDER BY created_at ASC LIMIT $3`
	jobs := []models.BulkUploadJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, models.BulkUploadQueued, models.BulkUploadProcessing, limit); err != nil {
		return nil, fmt.Errorf("list unfinished bulk upload jobs: %w", err)
	}
	return jobs, nil
}
