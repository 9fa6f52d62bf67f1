package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/repository"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
	"github.com/noah-isme/file-manager-api/pkg/jobs"
	"github.com/noah-isme/file-manager-api/pkg/storage"
)

// JobTypeBulkUpload labels bulk upload jobs on the queue.
const JobTypeBulkUpload = "bulk_upload"

const (
	stagingPrefix       = "staging"
	itemCodeStagingLost = "STAGING_MISSING"
	itemCodeExhausted   = "PROCESSING_FAILED"
	maxItemErrorLength  = 500
)

type bulkUploadRepository interface {
	Create(ctx context.Context, job *models.BulkUploadJob, items []models.BulkUploadItem) error
	GetJob(ctx context.Context, id string) (*models.BulkUploadJob, error)
	ListItems(ctx context.Context, jobID string) ([]models.BulkUploadItem, error)
	UpdateJob(ctx context.Context, id string, params repository.UpdateBulkJobParams) error
	UpdateItem(ctx context.Context, item *models.BulkUploadItem) error
	FailPendingItems(ctx context.Context, jobID, code, message string) (int64, error)
	ListUnfinished(ctx context.Context, limit int) ([]models.BulkUploadJob, error)
}

type bulkFileLookup interface {
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)
	Delete(ctx context.Context, id string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// BulkUploadConfig tunes bulk ingestion.
type BulkUploadConfig struct {
	MaxFiles        int
	ItemTimeout     time.Duration
	StagingTTL      time.Duration
	CleanupInterval time.Duration
}

// BulkFile is one part of a bulk submission.
type BulkFile struct {
	Filename string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// BulkUploadService accepts bulk submissions and processes them in the background.
type BulkUploadService struct {
	repo    bulkUploadRepository
	files   bulkFileLookup
	uploads *FileService
	blobs   BlobStore
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     BulkUploadConfig
	now     func() time.Time
}

// NewBulkUploadService constructs the service. The queue may be attached later with SetQueue.
func NewBulkUploadService(repo bulkUploadRepository, files bulkFileLookup, uploads *FileService, blobs BlobStore, queue jobEnqueuer, metrics *MetricsService, logger *zap.Logger, cfg BulkUploadConfig) *BulkUploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 20
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 2 * time.Minute
	}
	if cfg.StagingTTL <= 0 {
		cfg.StagingTTL = 24 * time.Hour
	}
	return &BulkUploadService{
		repo:    repo,
		files:   files,
		uploads: uploads,
		blobs:   blobs,
		queue:   queue,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetQueue attaches the queue after construction, since the queue itself needs Handle.
func (s *BulkUploadService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Submit validates and stages every file, persists the job and enqueues it.
// Files that fail validation are recorded as failed items right away.
func (s *BulkUploadService) Submit(ctx context.Context, files []BulkFile, actor *models.JWTClaims) (*models.BulkUploadJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one file is required")
	}
	if len(files) > s.cfg.MaxFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d files per bulk upload", s.cfg.MaxFiles))
	}

	job := &models.BulkUploadJob{ID: uuid.NewString(), OwnerID: actor.UserID, Status: models.BulkUploadQueued, CreatedAt: s.now()}
	items := make([]models.BulkUploadItem, len(files))
	staged := make([]string, 0, len(files))
	pending := 0
	for i, file := range files {
		item := models.BulkUploadItem{
			Position:         i,
			OriginalFilename: file.Filename,
			DeclaredSize:     file.Size,
			MimeType:         file.MimeType,
			FileID:           uuid.NewString(),
			Status:           models.BulkItemPending,
		}
		if _, _, err := s.uploads.validateUpload(UploadRequest{Filename: file.Filename, DeclaredSize: file.Size}); err != nil {
			markItemFailed(&item, err)
			items[i] = item
			continue
		}
		key, err := s.stage(ctx, job.ID, i, file)
		if err != nil {
			s.logger.Sugar().Warnw("failed to stage bulk upload item", "job_id", job.ID, "position", i, "error", err)
			markItemFailed(&item, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to stage file"))
			items[i] = item
			continue
		}
		item.StagingKey = &key
		staged = append(staged, key)
		pending++
		items[i] = item
	}

	if pending == 0 {
		finished := s.now()
		job.Status = models.BulkUploadCompleted
		job.FinishedAt = &finished
	}
	if err := s.repo.Create(ctx, job, items); err != nil {
		for _, key := range staged {
			_ = s.blobs.Delete(context.WithoutCancel(ctx), key)
		}
		return nil, storeError(err, "failed to create bulk upload job")
	}
	for _, item := range items {
		if item.Status == models.BulkItemFailed {
			s.metrics.RecordBulkItem(OutcomeFailed)
		}
	}

	if pending > 0 {
		if err := s.enqueue(job.ID); err != nil {
			s.logger.Sugar().Errorw("failed to enqueue bulk upload job; it will be recovered on restart", "job_id", job.ID, "error", err)
		}
	}
	s.logger.Sugar().Infow("bulk upload submitted", "job_id", job.ID, "owner_id", job.OwnerID, "total", len(items), "pending", pending)
	return job, nil
}

func (s *BulkUploadService) stage(ctx context.Context, jobID string, position int, file BulkFile) (string, error) {
	if file.Open == nil {
		return "", fmt.Errorf("file %d has no content", position)
	}
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	key := fmt.Sprintf("%s/%s/%d", stagingPrefix, jobID, position)
	if _, err := s.blobs.Save(ctx, key, rc); err != nil {
		return "", err
	}
	return key, nil
}

func (s *BulkUploadService) enqueue(jobID string) error {
	if s.queue == nil {
		return fmt.Errorf("bulk upload queue not configured")
	}
	return s.queue.Enqueue(jobs.Job{ID: jobID, Type: JobTypeBulkUpload, Payload: jobID})
}

// GetStatus returns the job report for its owner.
func (s *BulkUploadService) GetStatus(ctx context.Context, jobID string, actor *models.JWTClaims) (*models.BulkUploadReport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !validID(jobID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "bulk upload job not found")
	}
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bulk upload job not found")
		}
		return nil, storeError(err, "failed to load bulk upload job")
	}
	if job.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "bulk upload job not found")
	}
	items, err := s.repo.ListItems(ctx, jobID)
	if err != nil {
		return nil, storeError(err, "failed to load bulk upload items")
	}
	return &models.BulkUploadReport{Job: *job, Summary: models.Summarize(items), Items: items}, nil
}

// Handle processes the pending items of one job. Returning an error makes
// the queue retry the job; items that already reached an outcome are skipped.
func (s *BulkUploadService) Handle(ctx context.Context, qjob jobs.Job) error {
	job, err := s.repo.GetJob(ctx, qjob.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Sugar().Warnw("bulk upload job vanished", "job_id", qjob.ID)
			return nil
		}
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	processing := models.BulkUploadProcessing
	if err := s.repo.UpdateJob(ctx, job.ID, repository.UpdateBulkJobParams{Status: &processing, IncrementAttempt: true}); err != nil {
		return err
	}

	items, err := s.repo.ListItems(ctx, job.ID)
	if err != nil {
		return err
	}

	actor := &models.JWTClaims{UserID: job.OwnerID}
	var lastErr error
	for i := range items {
		if items[i].Status != models.BulkItemPending {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.processItem(ctx, actor, &items[i]); err != nil {
			s.logger.Sugar().Warnw("bulk upload item will be retried", "job_id", job.ID, "position", items[i].Position, "error", err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("bulk upload job %s: %w", job.ID, lastErr)
	}

	completed := models.BulkUploadCompleted
	finished := s.now()
	if err := s.repo.UpdateJob(ctx, job.ID, repository.UpdateBulkJobParams{Status: &completed, FinishedAt: &finished}); err != nil {
		return err
	}
	summary := models.Summarize(items)
	s.logger.Sugar().Infow("bulk upload finished",
		"job_id", job.ID,
		"created", summary.Created,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
	)
	return nil
}

// processItem drives one item to an outcome. An error means the item stays
// pending and should be retried.
func (s *BulkUploadService) processItem(ctx context.Context, actor *models.JWTClaims, item *models.BulkUploadItem) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
	defer cancel()

	existing, err := s.files.GetByID(ctx, item.FileID)
	switch {
	case err == nil:
		return s.adoptExisting(ctx, item, existing)
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	if item.StagingKey == nil {
		return s.finishItem(ctx, item, models.BulkItemFailed, nil, appErrors.New(itemCodeStagingLost, 0, "staged content is missing"))
	}
	body, err := s.blobs.Open(ctx, *item.StagingKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.finishItem(ctx, item, models.BulkItemFailed, nil, appErrors.New(itemCodeStagingLost, 0, "staged content is missing"))
		}
		return err
	}
	outcome, err := s.uploads.Upload(ctx, UploadRequest{
		Filename:     item.OriginalFilename,
		DeclaredSize: item.DeclaredSize,
		Content:      body,
		FileID:       item.FileID,
	}, actor)
	_ = body.Close()
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Retryable() || appErr.Code == appErrors.ErrInternal.Code {
			return err
		}
		return s.finishItem(ctx, item, models.BulkItemFailed, nil, appErr)
	}

	if outcome.Status == UploadDuplicate {
		if outcome.ExistingFileID == item.FileID {
			existing, err := s.files.GetByID(ctx, item.FileID)
			if err != nil {
				return err
			}
			return s.adoptExisting(ctx, item, existing)
		}
		hash := outcome.ExistingHash
		message := "a file with identical content already exists"
		if outcome.ExistingFileID != "" {
			message = fmt.Sprintf("duplicate of file %s", outcome.ExistingFileID)
		}
		return s.finishItem(ctx, item, models.BulkItemDuplicate, &hash, appErrors.New(appErrors.ErrDuplicateContent.Code, 0, message))
	}

	hash := outcome.File.ContentHash
	return s.finishItem(ctx, item, models.BulkItemCreated, &hash, nil)
}

// adoptExisting completes an item whose record was inserted by an earlier
// attempt, restoring the blob when that attempt died before writing it.
func (s *BulkUploadService) adoptExisting(ctx context.Context, item *models.BulkUploadItem, existing *models.FileRecord) error {
	exists, err := s.blobs.Exists(ctx, existing.StorageKey)
	if err != nil {
		return err
	}
	if !exists {
		if item.StagingKey == nil {
			return s.dropOrphanRecord(ctx, item, existing)
		}
		body, err := s.blobs.Open(ctx, *item.StagingKey)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return s.dropOrphanRecord(ctx, item, existing)
			}
			return err
		}
		_, err = s.blobs.Save(ctx, existing.StorageKey, body)
		_ = body.Close()
		if err != nil {
			return err
		}
		s.logger.Sugar().Infow("restored blob for retried bulk item", "job_id", item.JobID, "file_id", existing.ID)
	}
	hash := existing.ContentHash
	return s.finishItem(ctx, item, models.BulkItemCreated, &hash, nil)
}

func (s *BulkUploadService) dropOrphanRecord(ctx context.Context, item *models.BulkUploadItem, existing *models.FileRecord) error {
	if err := s.files.Delete(ctx, existing.ID); err != nil {
		return err
	}
	return s.finishItem(ctx, item, models.BulkItemFailed, nil, appErrors.New(itemCodeStagingLost, 0, "staged content is missing"))
}

// finishItem persists the outcome first and only then releases the staged blob,
// so a crash in between never loses the content of a pending item.
func (s *BulkUploadService) finishItem(ctx context.Context, item *models.BulkUploadItem, status models.BulkItemStatus, hash *string, cause *appErrors.Error) error {
	stagingKey := item.StagingKey
	item.Status = status
	item.ContentHash = hash
	item.StagingKey = nil
	if cause != nil {
		markItemFailed(item, cause)
		item.Status = status
	}
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		item.Status = models.BulkItemPending
		item.StagingKey = stagingKey
		return err
	}

	switch status {
	case models.BulkItemCreated:
		s.metrics.RecordBulkItem(OutcomeCreated)
	case models.BulkItemDuplicate:
		s.metrics.RecordBulkItem(OutcomeDuplicate)
	default:
		s.metrics.RecordBulkItem(OutcomeFailed)
	}
	if stagingKey != nil {
		if err := s.blobs.Delete(ctx, *stagingKey); err != nil {
			s.logger.Sugar().Warnw("failed to delete staged blob", "key", *stagingKey, "error", err)
		}
	}
	return nil
}

func markItemFailed(item *models.BulkUploadItem, err error) {
	appErr := appErrors.FromError(err)
	code := appErr.Code
	message := truncate(appErr.Message, maxItemErrorLength)
	item.Status = models.BulkItemFailed
	item.ErrorCode = &code
	item.ErrorMessage = &message
}

// OnExhausted marks a job that ran out of retries as failed along with its pending items.
func (s *BulkUploadService) OnExhausted(ctx context.Context, qjob jobs.Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	message := truncate(cause.Error(), maxItemErrorLength)
	if _, err := s.repo.FailPendingItems(ctx, qjob.ID, itemCodeExhausted, message); err != nil {
		s.logger.Sugar().Errorw("failed to fail pending bulk items", "job_id", qjob.ID, "error", err)
	}
	failed := models.BulkUploadFailed
	finished := s.now()
	if err := s.repo.UpdateJob(ctx, qjob.ID, repository.UpdateBulkJobParams{Status: &failed, ErrorMessage: &message, FinishedAt: &finished}); err != nil {
		s.logger.Sugar().Errorw("failed to mark bulk upload job failed", "job_id", qjob.ID, "error", err)
	}

	items, err := s.repo.ListItems(ctx, qjob.ID)
	if err != nil {
		return
	}
	for _, item := range items {
		if item.StagingKey != nil {
			_ = s.blobs.Delete(ctx, *item.StagingKey)
		}
	}
	s.logger.Sugar().Errorw("bulk upload job failed", "job_id", qjob.ID, "error", cause)
}

// RecoverPendingJobs re-enqueues jobs left queued or processing by a previous process.
func (s *BulkUploadService) RecoverPendingJobs(ctx context.Context) int {
	pending, err := s.repo.ListUnfinished(ctx, 100)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover bulk upload jobs", "error", err)
		return 0
	}
	recovered := 0
	for _, job := range pending {
		if err := s.enqueue(job.ID); err != nil {
			s.logger.Sugar().Warnw("failed to requeue bulk upload job", "job_id", job.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.logger.Sugar().Infow("recovered bulk upload jobs", "count", recovered)
	}
	return recovered
}

// StartStagingCleanup periodically removes staged blobs older than the staging TTL.
func (s *BulkUploadService) StartStagingCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupStaging(ctx)
			}
		}
	}()
}

// CleanupStaging removes abandoned staged blobs once.
func (s *BulkUploadService) CleanupStaging(ctx context.Context) int {
	removed, err := s.blobs.CleanupOlderThan(ctx, stagingPrefix, s.cfg.StagingTTL)
	if err != nil {
		s.logger.Sugar().Warnw("staging cleanup failed", "error", err)
	}
	if len(removed) > 0 {
		s.logger.Sugar().Infow("removed stale staged blobs", "count", len(removed))
	}
	return len(removed)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
