package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/repository"
	"github.com/noah-isme/file-manager-api/pkg/contenthash"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
	"github.com/noah-isme/file-manager-api/pkg/export"
	"github.com/noah-isme/file-manager-api/pkg/storage"
)

const (
	maxFilenameLength    = 255
	maxDescriptionLength = 2000
	maxBulkDeleteIDs     = 100
	statsRecentWindow    = 7 * 24 * time.Hour
	compensationTimeout  = 5 * time.Second
)

type fileRepository interface {
	Create(ctx context.Context, file *models.FileRecord) error
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.FileRecord, error)
	GetByHash(ctx context.Context, hash string) (*models.FileRecord, error)
	ListPage(ctx context.Context, q repository.FilePageQuery) ([]models.FileRecord, error)
	UpdateDescription(ctx context.Context, id, ownerID, description string) (*models.FileRecord, error)
	TouchAccess(ctx context.Context, id string, at time.Time) error
	DeleteForOwner(ctx context.Context, id, ownerID string) (*models.FileRecord, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, ownerID string, recentSince time.Time) (*models.FileStats, error)
}

type accessLogRepository interface {
	Create(ctx context.Context, entry *models.FileAccessLog) error
}

// BlobStore persists file bytes under system generated keys.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CleanupOlderThan(ctx context.Context, prefix string, ttl time.Duration) ([]string, error)
}

// FileServiceConfig bounds uploads and previews.
type FileServiceConfig struct {
	MaxFileSize         int64
	AllowedExtensions   []string
	HashChunkSize       int
	PreviewMaxSize      int64
	PreviewMaxTextChars int
}

// UploadRequest is one file to ingest. FileID may be preassigned by callers
// that need to recognise the record on a retry.
type UploadRequest struct {
	Filename     string
	Description  string
	DeclaredSize int64
	Content      io.Reader
	FileID       string
}

// UploadStatus is the result of an ingestion attempt.
type UploadStatus string

const (
	UploadCreated   UploadStatus = "CREATED"
	UploadDuplicate UploadStatus = "DUPLICATE"
)

// UploadOutcome reports what happened to an upload. ExistingFileID is only
// set when the conflicting record belongs to the uploader.
type UploadOutcome struct {
	Status         UploadStatus
	File           *models.FileRecord
	ExistingHash   string
	ExistingFileID string
}

// ConflictError renders a duplicate outcome as the client facing error.
func (o *UploadOutcome) ConflictError() error {
	details := map[string]string{"content_hash": o.ExistingHash}
	if o.ExistingFileID != "" {
		details["existing_file_id"] = o.ExistingFileID
	}
	return appErrors.WithDetails(appErrors.ErrDuplicateContent, details)
}

// AccessMeta describes the client reading a file.
type AccessMeta struct {
	IP        string
	UserAgent string
}

// FileContent is an opened blob ready to stream. Callers must close Body.
type FileContent struct {
	File        *models.FileRecord
	Body        io.ReadCloser
	ContentType string
	Size        int64
	Inline      bool
	Truncated   bool
}

// Disposition returns the Content-Disposition header value.
func (c *FileContent) Disposition() string {
	kind := "attachment"
	if c.Inline {
		kind = "inline"
	}
	return mime.FormatMediaType(kind, map[string]string{"filename": c.File.OriginalFilename})
}

// BulkDeleteResult is the outcome for one requested id.
type BulkDeleteResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Bulk delete outcomes.
const (
	BulkDeleteDeleted  = "deleted"
	BulkDeleteNotFound = "not_found"
	BulkDeleteFailed   = "failed"
)

// ExportFile is a rendered statistics export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FileService owns single file ingestion and the per-file operations.
type FileService struct {
	files   fileRepository
	access  accessLogRepository
	blobs   BlobStore
	cache   *CacheService
	metrics *MetricsService
	hasher  *contenthash.Hasher
	logger  *zap.Logger
	cfg     FileServiceConfig
	allowed map[string]struct{}
	now     func() time.Time
}

// NewFileService constructs a FileService.
func NewFileService(files fileRepository, access accessLogRepository, blobs BlobStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg FileServiceConfig) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if cfg.PreviewMaxSize <= 0 {
		cfg.PreviewMaxSize = cfg.MaxFileSize
	}
	if cfg.PreviewMaxTextChars <= 0 {
		cfg.PreviewMaxTextChars = 50000
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &FileService{
		files:   files,
		access:  access,
		blobs:   blobs,
		cache:   cache,
		metrics: metrics,
		hasher:  contenthash.New(cfg.HashChunkSize, cfg.MaxFileSize),
		logger:  logger,
		cfg:     cfg,
		allowed: allowed,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upload hashes the content, claims the hash with a single insert and only
// then writes the blob. If the blob cannot be written the row is removed again.
func (s *FileService) Upload(ctx context.Context, req UploadRequest, actor *models.JWTClaims) (*UploadOutcome, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filename, ext, err := s.validateUpload(req)
	if err != nil {
		return nil, err
	}
	if req.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file content is required")
	}

	content, cleanup, digest, err := s.prepareContent(ctx, req.Content)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	mimeType, err := sniffMIME(content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file content")
	}

	fileID := strings.TrimSpace(req.FileID)
	if fileID == "" {
		fileID = uuid.NewString()
	}
	now := s.now()
	record := &models.FileRecord{
		ID:               fileID,
		OwnerID:          actor.UserID,
		OriginalFilename: filename,
		StorageKey:       fmt.Sprintf("uploads/%s/%s.%s", actor.UserID, fileID, ext),
		ContentHash:      digest.Hex,
		SizeBytes:        digest.Size,
		FileType:         ext,
		MimeType:         mimeType,
		Description:      strings.TrimSpace(req.Description),
		UploadedAt:       now,
		UpdatedAt:        now,
	}

	if err := s.files.Create(ctx, record); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateHash):
			return s.duplicateOutcome(ctx, digest.Hex, actor)
		case errors.Is(err, repository.ErrDuplicateFileID):
			return s.preassignedOutcome(ctx, fileID, digest.Hex, actor)
		}
		s.metrics.RecordUpload(OutcomeFailed, 0)
		return nil, storeError(err, "failed to save file metadata")
	}

	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, s.compensate(ctx, record, err)
	}
	start := time.Now()
	written, err := s.blobs.Save(ctx, record.StorageKey, content)
	s.metrics.ObserveBlobOperation("save", time.Since(start))
	if err == nil && written != digest.Size {
		err = fmt.Errorf("wrote %d bytes, expected %d", written, digest.Size)
	}
	if err != nil {
		return nil, s.compensate(ctx, record, err)
	}

	s.invalidateOwner(ctx, actor.UserID)
	s.metrics.RecordUpload(OutcomeCreated, record.SizeBytes)
	s.logger.Info("file uploaded",
		zap.String("file_id", record.ID),
		zap.String("owner_id", record.OwnerID),
		zap.String("content_hash", record.ContentHash),
		zap.Int64("size_bytes", record.SizeBytes),
	)
	return &UploadOutcome{Status: UploadCreated, File: record}, nil
}

func (s *FileService) validateUpload(req UploadRequest) (string, string, error) {
	filename := path.Base(strings.ReplaceAll(strings.TrimSpace(req.Filename), `\`, "/"))
	if filename == "" || filename == "." || filename == "/" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "filename is required")
	}
	if utf8.RuneCountInString(filename) > maxFilenameLength {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "filename must be at most 255 characters")
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "filename must have an extension")
	}
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[ext]; !ok {
			return "", "", appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "file type not allowed"), map[string]string{"file_type": ext})
		}
	}
	if req.DeclaredSize > s.cfg.MaxFileSize {
		return "", "", appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds maximum size of %s", models.HumanSize(s.cfg.MaxFileSize)))
	}
	if len(req.Description) > maxDescriptionLength {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "description must be at most 2000 characters")
	}
	return filename, ext, nil
}

// prepareContent returns a rewindable reader positioned at the start along
// with the content digest. Non-seekable input is spooled to a temp file while
// it is hashed.
func (s *FileService) prepareContent(ctx context.Context, r io.Reader) (io.ReadSeeker, func(), contenthash.Digest, error) {
	noop := func() {}
	var (
		content io.ReadSeeker
		cleanup = noop
		digest  contenthash.Digest
		err     error
	)

	if rs, ok := r.(io.ReadSeeker); ok {
		content = rs
		digest, err = s.hasher.Sum(ctx, rs)
	} else {
		tmp, tmpErr := os.CreateTemp("", "upload-*")
		if tmpErr != nil {
			return nil, noop, contenthash.Digest{}, appErrors.Wrap(tmpErr, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to buffer upload")
		}
		cleanup = func() {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
		content = tmp
		digest, err = s.hasher.Sum(ctx, io.TeeReader(r, tmp))
	}
	if err != nil {
		cleanup()
		return nil, noop, contenthash.Digest{}, hashError(err)
	}
	if digest.Size == 0 {
		cleanup()
		return nil, noop, contenthash.Digest{}, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, noop, contenthash.Digest{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewind upload")
	}
	return content, cleanup, digest, nil
}

func hashError(err error) error {
	switch {
	case errors.Is(err, contenthash.ErrTooLarge):
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "file exceeds maximum size")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "upload timed out")
	default:
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
}

func sniffMIME(content io.ReadSeeker) (string, error) {
	detected, err := mimetype.DetectReader(content)
	if err != nil {
		return "", err
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return detected.String(), nil
}

func (s *FileService) duplicateOutcome(ctx context.Context, hash string, actor *models.JWTClaims) (*UploadOutcome, error) {
	outcome := &UploadOutcome{Status: UploadDuplicate, ExistingHash: hash}
	existing, err := s.files.GetByHash(ctx, hash)
	switch {
	case err == nil:
		if existing.OwnerID == actor.UserID {
			outcome.ExistingFileID = existing.ID
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		s.logger.Warn("lookup of duplicate file failed", zap.String("content_hash", hash), zap.Error(err))
	}
	s.metrics.RecordUpload(OutcomeDuplicate, 0)
	s.logger.Info("duplicate upload rejected", zap.String("owner_id", actor.UserID), zap.String("content_hash", hash))
	return outcome, nil
}

// preassignedOutcome handles an insert whose preassigned id already exists,
// which happens when an earlier attempt for the same id got past the insert.
func (s *FileService) preassignedOutcome(ctx context.Context, fileID, hash string, actor *models.JWTClaims) (*UploadOutcome, error) {
	existing, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "file id already in use")
		}
		return nil, storeError(err, "failed to load file")
	}
	if existing.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "file id already in use")
	}
	return &UploadOutcome{Status: UploadDuplicate, ExistingHash: existing.ContentHash, ExistingFileID: existing.ID}, nil
}

func (s *FileService) compensate(ctx context.Context, record *models.FileRecord, cause error) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.files.Delete(cleanupCtx, record.ID); err != nil {
		s.logger.Error("compensating delete failed",
			zap.String("file_id", record.ID),
			zap.String("content_hash", record.ContentHash),
			zap.Error(err),
		)
	} else {
		s.logger.Warn("blob write failed, metadata removed", zap.String("file_id", record.ID), zap.Error(cause))
	}
	_ = s.blobs.Delete(cleanupCtx, record.StorageKey)
	s.metrics.RecordUpload(OutcomeFailed, 0)
	return appErrors.Wrap(cause, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
}

// Get returns an owned file and records the view.
func (s *FileService) Get(ctx context.Context, id string, actor *models.JWTClaims, meta AccessMeta) (*models.FileRecord, error) {
	file, err := s.ownedFile(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	s.recordAccess(ctx, file, &actor.UserID, models.FileAccessView, meta)
	return file, nil
}

// UpdateDescription changes the description of an owned file.
func (s *FileService) UpdateDescription(ctx context.Context, id, description string, actor *models.JWTClaims) (*models.FileRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	description = strings.TrimSpace(description)
	if len(description) > maxDescriptionLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "description must be at most 2000 characters")
	}
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	file, err := s.files.UpdateDescription(ctx, id, actor.UserID, description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, storeError(err, "failed to update file")
	}
	s.invalidateOwner(ctx, actor.UserID)
	return file, nil
}

// Delete removes the row and then the blob. The row is authoritative, so a
// blob that cannot be removed is only logged.
func (s *FileService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !validID(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	file, err := s.files.DeleteForOwner(ctx, id, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return storeError(err, "failed to delete file")
	}
	s.deleteBlob(ctx, file)
	s.invalidateOwner(ctx, actor.UserID)
	s.logger.Info("file deleted", zap.String("file_id", file.ID), zap.String("owner_id", file.OwnerID))
	return nil
}

// BulkDelete deletes each id independently and reports per-id outcomes.
func (s *FileService) BulkDelete(ctx context.Context, ids []string, actor *models.JWTClaims) ([]BulkDeleteResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids must not be empty")
	}
	if len(ids) > maxBulkDeleteIDs {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at most 100 ids per request")
	}

	results := make([]BulkDeleteResult, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	deleted := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if !validID(id) {
			results = append(results, BulkDeleteResult{ID: id, Status: BulkDeleteNotFound})
			continue
		}
		file, err := s.files.DeleteForOwner(ctx, id, actor.UserID)
		switch {
		case err == nil:
			s.deleteBlob(ctx, file)
			deleted++
			results = append(results, BulkDeleteResult{ID: id, Status: BulkDeleteDeleted})
		case errors.Is(err, sql.ErrNoRows):
			results = append(results, BulkDeleteResult{ID: id, Status: BulkDeleteNotFound})
		default:
			s.logger.Warn("bulk delete item failed", zap.String("file_id", id), zap.Error(err))
			results = append(results, BulkDeleteResult{ID: id, Status: BulkDeleteFailed, Error: "failed to delete file"})
		}
	}
	if deleted > 0 {
		s.invalidateOwner(ctx, actor.UserID)
	}
	return results, nil
}

// Download opens an owned file as an attachment.
func (s *FileService) Download(ctx context.Context, id string, actor *models.JWTClaims, meta AccessMeta) (*FileContent, error) {
	file, err := s.ownedFile(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	content, err := s.open(ctx, file, false)
	if err != nil {
		return nil, err
	}
	s.recordAccess(ctx, file, &actor.UserID, models.FileAccessDownload, meta)
	return content, nil
}

// Preview opens an owned file for inline display. Text is truncated to the
// configured number of characters.
func (s *FileService) Preview(ctx context.Context, id string, actor *models.JWTClaims, meta AccessMeta) (*FileContent, error) {
	file, err := s.ownedFile(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if file.SizeBytes > s.cfg.PreviewMaxSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "file is too large to preview")
	}

	var content *FileContent
	switch previewKind(file.MimeType) {
	case previewStream:
		content, err = s.open(ctx, file, true)
	case previewText:
		content, err = s.textPreview(ctx, file)
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "preview is not available for this file type")
	}
	if err != nil {
		return nil, err
	}
	s.recordAccess(ctx, file, &actor.UserID, models.FileAccessPreview, meta)
	return content, nil
}

type previewMode int

const (
	previewNone previewMode = iota
	previewStream
	previewText
)

func previewKind(mimeType string) previewMode {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(base, "image/"), strings.HasPrefix(base, "video/"), strings.HasPrefix(base, "audio/"), base == "application/pdf":
		return previewStream
	case strings.HasPrefix(base, "text/"), base == "application/json", base == "application/xml":
		return previewText
	default:
		return previewNone
	}
}

func (s *FileService) textPreview(ctx context.Context, file *models.FileRecord) (*FileContent, error) {
	body, err := s.openBlob(ctx, file)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	limit := int64(s.cfg.PreviewMaxTextChars) * utf8.UTFMax
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read file")
	}
	text := strings.ToValidUTF8(string(raw), "�")
	truncated := int64(len(raw)) > limit
	if utf8.RuneCountInString(text) > s.cfg.PreviewMaxTextChars {
		runes := []rune(text)
		text = string(runes[:s.cfg.PreviewMaxTextChars])
		truncated = true
	}
	return &FileContent{
		File:        file,
		Body:        io.NopCloser(strings.NewReader(text)),
		ContentType: "text/plain; charset=utf-8",
		Size:        int64(len(text)),
		Inline:      true,
		Truncated:   truncated,
	}, nil
}

// Stats summarises the actor's storage usage.
func (s *FileService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.FileStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	now := s.now()
	stats, err := s.files.Stats(ctx, actor.UserID, now.Add(-statsRecentWindow))
	if err != nil {
		return nil, storeError(err, "failed to load file statistics")
	}
	stats.TotalSizeDisplay = models.HumanSize(stats.TotalBytes)
	stats.GeneratedAt = now
	return stats, nil
}

// ExportStats renders the actor's statistics as csv or pdf.
func (s *FileService) ExportStats(ctx context.Context, actor *models.JWTClaims, format string) (*ExportFile, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	stats, err := s.Stats(ctx, actor)
	if err != nil {
		return nil, err
	}

	doc := export.Document{
		Title:       "File statistics",
		GeneratedAt: stats.GeneratedAt,
		Tables: []export.Table{
			{
				Title:   "Summary",
				Headers: []string{"metric", "value"},
				Rows: [][]string{
					{"total_files", strconv.FormatInt(stats.TotalFiles, 10)},
					{"total_bytes", strconv.FormatInt(stats.TotalBytes, 10)},
					{"total_size", stats.TotalSizeDisplay},
					{"recent_uploads", strconv.FormatInt(stats.RecentUploads, 10)},
				},
			},
			{
				Title:   "By type",
				Headers: []string{"file_type", "count", "bytes"},
				Rows:    statsRows(stats.ByType),
			},
		},
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("file_stats_%s%s", stats.GeneratedAt.Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func statsRows(byType []models.FileTypeStat) [][]string {
	rows := make([][]string, 0, len(byType))
	for _, stat := range byType {
		rows = append(rows, []string{stat.FileType, strconv.FormatInt(stat.Count, 10), strconv.FormatInt(stat.TotalBytes, 10)})
	}
	return rows
}

func (s *FileService) ownedFile(ctx context.Context, id string, actor *models.JWTClaims) (*models.FileRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	file, err := s.files.GetByIDForOwner(ctx, id, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, storeError(err, "failed to load file")
	}
	return file, nil
}

func (s *FileService) open(ctx context.Context, file *models.FileRecord, inline bool) (*FileContent, error) {
	body, err := s.openBlob(ctx, file)
	if err != nil {
		return nil, err
	}
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &FileContent{File: file, Body: body, ContentType: contentType, Size: file.SizeBytes, Inline: inline}, nil
}

func (s *FileService) openBlob(ctx context.Context, file *models.FileRecord) (io.ReadCloser, error) {
	start := time.Now()
	body, err := s.blobs.Open(ctx, file.StorageKey)
	s.metrics.ObserveBlobOperation("open", time.Since(start))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("blob missing for file", zap.String("file_id", file.ID), zap.String("storage_key", file.StorageKey))
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
	}
	return body, nil
}

func (s *FileService) deleteBlob(ctx context.Context, file *models.FileRecord) {
	start := time.Now()
	err := s.blobs.Delete(context.WithoutCancel(ctx), file.StorageKey)
	s.metrics.ObserveBlobOperation("delete", time.Since(start))
	if err != nil {
		s.logger.Warn("blob delete failed, orphan left behind",
			zap.String("file_id", file.ID),
			zap.String("storage_key", file.StorageKey),
			zap.Error(err),
		)
	}
}

// recordAccess bumps counters and writes an access log row. Failures are logged only.
func (s *FileService) recordAccess(ctx context.Context, file *models.FileRecord, userID *string, accessType models.FileAccessType, meta AccessMeta) {
	now := s.now()
	if err := s.files.TouchAccess(ctx, file.ID, now); err != nil {
		s.logger.Warn("touch file access failed", zap.String("file_id", file.ID), zap.Error(err))
	} else {
		file.ViewCount++
		file.LastAccessedAt = &now
	}
	if s.access == nil {
		return
	}
	entry := &models.FileAccessLog{
		FileID:     file.ID,
		UserID:     userID,
		AccessType: accessType,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		AccessedAt: now,
	}
	if err := s.access.Create(ctx, entry); err != nil {
		s.logger.Warn("write access log failed", zap.String("file_id", file.ID), zap.Error(err))
	}
}

func (s *FileService) invalidateOwner(ctx context.Context, ownerID string) {
	_ = s.cache.Invalidate(context.WithoutCancel(ctx), listCachePattern(ownerID))
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
