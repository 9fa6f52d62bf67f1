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
	"github.com/lib/pq"

	"github.com/noah-isme/file-manager-api/internal/models"
)

const (
	uniqueViolation = "23505"

	constraintFileHash       = "files_content_hash_key"
	constraintFileStorageKey = "files_storage_key_key"
	constraintFilePrimaryKey = "files_pkey"
)

var (
	// ErrDuplicateHash is returned when the content hash unique index rejects an insert.
	ErrDuplicateHash = errors.New("file with identical content hash already exists")
	// ErrDuplicateFileID is returned when a preassigned file ID is already taken.
	ErrDuplicateFileID = errors.New("file id already exists")
	// ErrDuplicateStorageKey is returned when a storage key collides.
	ErrDuplicateStorageKey = errors.New("storage key already exists")
)

const fileColumns = `id, owner_id, original_filename, storage_key, content_hash, size_bytes, file_type, mime_type,
       description, view_count, uploaded_at, updated_at, last_accessed_at`

// Keyset is a position in uploaded_at DESC, id DESC order.
type Keyset struct {
	UploadedAt time.Time
	ID         string
}

// FilePageQuery describes one keyset read.
type FilePageQuery struct {
	Filter models.FileFilter
	// After excludes everything up to and including this position in the walk direction.
	After *Keyset
	// Backward walks towards newer records; rows are then returned oldest first.
	Backward bool
	Limit    int
}

// FileRepository persists file metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a metadata row in a single statement. The content hash unique
// constraint is the only duplicate check, so concurrent uploads of the same
// bytes race safely: exactly one insert wins.
func (r *FileRepository) Create(ctx context.Context, file *models.FileRecord) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.UploadedAt.IsZero() {
		file.UploadedAt = now
	}
	file.UpdatedAt = file.UploadedAt

	const query = `INSERT INTO files
	(id, owner_id, original_filename, storage_key, content_hash, size_bytes, file_type, mime_type, description, view_count, uploaded_at, updated_at)
	VALUES (:id, :owner_id, :original_filename, :storage_key, :content_hash, :size_bytes, :file_type, :mime_type, :description, :view_count, :uploaded_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		if mapped := mapFileUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func mapFileUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case constraintFileHash:
		return ErrDuplicateHash
	case constraintFilePrimaryKey:
		return ErrDuplicateFileID
	case constraintFileStorageKey:
		return ErrDuplicateStorageKey
	default:
		return nil
	}
}

// GetByID returns a file regardless of owner.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	var file models.FileRecord
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &file, nil
}

// GetByIDForOwner returns sql.ErrNoRows both for missing files and for files owned by someone else.
func (r *FileRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND owner_id = $2`
	var file models.FileRecord
	if err := r.db.GetContext(ctx, &file, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get owned file: %w", err)
	}
	return &file, nil
}

// GetByHash returns the record holding a content hash.
func (r *FileRepository) GetByHash(ctx context.Context, hash string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE content_hash = $1`
	var file models.FileRecord
	if err := r.db.GetContext(ctx, &file, query, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get file by hash: %w", err)
	}
	return &file, nil
}

// ListPage reads up to q.Limit rows in walk order using the owner/uploaded_at/id index.
// Forward pages come back newest first; backward pages come back oldest first.
func (r *FileRepository) ListPage(ctx context.Context, q FilePageQuery) ([]models.FileRecord, error) {
	conditions, args := buildFileConditions(q.Filter)

	if q.After != nil {
		op := "<"
		if q.Backward {
			op = ">"
		}
		args = append(args, q.After.UploadedAt, q.After.ID)
		conditions = append(conditions, fmt.Sprintf("(uploaded_at, id) %s ($%d::timestamptz, $%d::uuid)", op, len(args)-1, len(args)))
	}

	order := "uploaded_at DESC, id DESC"
	if q.Backward {
		order = "uploaded_at ASC, id ASC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf("SELECT %s FROM files WHERE %s ORDER BY %s LIMIT %d",
		fileColumns, strings.Join(conditions, " AND "), order, limit)

	var files []models.FileRecord
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// buildFileConditions translates a filter into AND-ed predicates. The owner scope is always first.
func buildFileConditions(filter models.FileFilter) ([]string, []interface{}) {
	filter = filter.Normalize()
	args := []interface{}{filter.OwnerID}
	conditions := []string{"owner_id = $1"}

	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(`original_filename ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if len(filter.FileTypes) > 0 {
		args = append(args, pq.Array(filter.FileTypes))
		conditions = append(conditions, fmt.Sprintf("file_type = ANY($%d)", len(args)))
	}
	if filter.UploadedAfter != nil {
		args = append(args, filter.UploadedAfter.UTC())
		conditions = append(conditions, fmt.Sprintf("uploaded_at >= $%d", len(args)))
	}
	if filter.UploadedBefore != nil {
		args = append(args, filter.UploadedBefore.UTC())
		conditions = append(conditions, fmt.Sprintf("uploaded_at <= $%d", len(args)))
	}
	if filter.MinSize != nil {
		args = append(args, *filter.MinSize)
		conditions = append(conditions, fmt.Sprintf("size_bytes >= $%d", len(args)))
	}
	if filter.MaxSize != nil {
		args = append(args, *filter.MaxSize)
		conditions = append(conditions, fmt.Sprintf("size_bytes <= $%d", len(args)))
	}
	if filter.AccessedWithinDays != nil {
		args = append(args, *filter.AccessedWithinDays)
		conditions = append(conditions, fmt.Sprintf("last_accessed_at >= NOW() - make_interval(days => $%d)", len(args)))
	}
	return conditions, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// UpdateDescription changes the description of an owned file.
func (r *FileRepository) UpdateDescription(ctx context.Context, id, ownerID, description string) (*models.FileRecord, error) {
	query := `UPDATE files SET description = $3, updated_at = $4 WHERE id = $1 AND owner_id = $2 RETURNING ` + fileColumns
	var file models.FileRecord
	if err := r.db.GetContext(ctx, &file, query, id, ownerID, description, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update file description: %w", err)
	}
	return &file, nil
}

// TouchAccess bumps the view counter and last access time.
func (r *FileRepository) TouchAccess(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE files SET view_count = view_count + 1, last_accessed_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch file access: %w", err)
	}
	return nil
}

// DeleteForOwner removes an owned row and returns it so the caller can drop the blob.
func (r *FileRepository) DeleteForOwner(ctx context.Context, id, ownerID string) (*models.FileRecord, error) {
	query := `DELETE FROM files WHERE id = $1 AND owner_id = $2 RETURNING ` + fileColumns
	var file models.FileRecord
	if err := r.db.GetContext(ctx, &file, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("delete file: %w", err)
	}
	return &file, nil
}

// Delete removes a row by id. Used to compensate an insert whose blob could not be written.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM files WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete file row: %w", err)
	}
	return nil
}

// Stats aggregates an owner's files. recentSince bounds the recent upload counter.
func (r *FileRepository) Stats(ctx context.Context, ownerID string, recentSince time.Time) (*models.FileStats, error) {
	const totalsQuery = `SELECT COUNT(*) AS total_files,
       COALESCE(SUM(size_bytes), 0) AS total_bytes,
       COUNT(*) FILTER (WHERE uploaded_at >= $2) AS recent_uploads
	FROM files WHERE owner_id = $1`
	var totals struct {
		TotalFiles    int64 `db:"total_files"`
		TotalBytes    int64 `db:"total_bytes"`
		RecentUploads int64 `db:"recent_uploads"`
	}
	if err := r.db.GetContext(ctx, &totals, totalsQuery, ownerID, recentSince); err != nil {
		return nil, fmt.Errorf("file totals: %w", err)
	}

	const byTypeQuery = `SELECT file_type, COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS total_bytes
	FROM files WHERE owner_id = $1 GROUP BY file_type ORDER BY count DESC, file_type ASC`
	byType := []models.FileTypeStat{}
	if err := r.db.SelectContext(ctx, &byType, byTypeQuery, ownerID); err != nil {
		return nil, fmt.Errorf("file stats by type: %w", err)
	}

	return &models.FileStats{
		TotalFiles:    totals.TotalFiles,
		TotalBytes:    totals.TotalBytes,
		RecentUploads: totals.RecentUploads,
		ByType:        byType,
	}, nil
}
