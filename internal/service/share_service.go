package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/file-manager-api/internal/models"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
	"github.com/noah-isme/file-manager-api/pkg/storage"
)

type shareRepository interface {
	Create(ctx context.Context, link *models.ShareLink) error
	GetByID(ctx context.Context, id string) (*models.ShareLink, error)
	ListByFile(ctx context.Context, fileID, ownerID string) ([]models.ShareLink, error)
	Revoke(ctx context.Context, id, ownerID string) error
	IncrementAccess(ctx context.Context, id string) error
}

type shareTokenSigner interface {
	Generate(grantID, fileID string, ttl time.Duration) (string, time.Time, error)
	Parse(token string, allowExpired bool) (grantID, fileID string, expiresAt time.Time, err error)
}

// ShareConfig bounds share link lifetimes.
type ShareConfig struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// ShareGrant is a freshly created link together with its token.
type ShareGrant struct {
	Link  models.ShareLink `json:"link"`
	Token string           `json:"token"`
}

// SharedFile is what a valid token resolves to.
type SharedFile struct {
	Link models.ShareLink  `json:"link"`
	File models.FileRecord `json:"file"`
}

// ShareService issues and honours time limited public links to files.
type ShareService struct {
	repo   shareRepository
	files  *FileService
	signer shareTokenSigner
	logger *zap.Logger
	cfg    ShareConfig
	now    func() time.Time
}

// NewShareService constructs a ShareService.
func NewShareService(repo shareRepository, files *FileService, signer shareTokenSigner, logger *zap.Logger, cfg ShareConfig) *ShareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 30 * 24 * time.Hour
	}
	return &ShareService{repo: repo, files: files, signer: signer, logger: logger, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Create issues a link for an owned file. ttl <= 0 uses the default lifetime.
func (s *ShareService) Create(ctx context.Context, fileID string, ttl time.Duration, actor *models.JWTClaims) (*ShareGrant, error) {
	if ttl > s.cfg.MaxTTL {
		return nil, appErrors.Clone(appErrors.ErrValidation, "share lifetime exceeds the maximum allowed")
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	file, err := s.files.ownedFile(ctx, fileID, actor)
	if err != nil {
		return nil, err
	}

	link := models.ShareLink{
		ID:        uuid.NewString(),
		FileID:    file.ID,
		CreatedBy: actor.UserID,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	token, expiresAt, err := s.signer.Generate(link.ID, file.ID, ttl)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign share link")
	}
	link.ExpiresAt = expiresAt
	if err := s.repo.Create(ctx, &link); err != nil {
		return nil, storeError(err, "failed to create share link")
	}
	s.logger.Info("share link created", zap.String("share_id", link.ID), zap.String("file_id", file.ID), zap.Time("expires_at", expiresAt))
	return &ShareGrant{Link: link, Token: token}, nil
}

// List returns the links issued for an owned file.
func (s *ShareService) List(ctx context.Context, fileID string, actor *models.JWTClaims) ([]models.ShareLink, error) {
	file, err := s.files.ownedFile(ctx, fileID, actor)
	if err != nil {
		return nil, err
	}
	links, err := s.repo.ListByFile(ctx, file.ID, actor.UserID)
	if err != nil {
		return nil, storeError(err, "failed to list share links")
	}
	return links, nil
}

// Resolve validates a token. Unknown or forged tokens are not found, revoked
// links are forbidden and expired links are gone.
func (s *ShareService) Resolve(ctx context.Context, token string) (*SharedFile, error) {
	grantID, fileID, _, err := s.signer.Parse(token, true)
	if err != nil || !validID(grantID) || !validID(fileID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "share link not found")
	}
	link, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "share link not found")
		}
		return nil, storeError(err, "failed to load share link")
	}
	if link.FileID != fileID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "share link not found")
	}
	if !link.IsActive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "share link has been revoked")
	}
	if link.Expired(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrGone, "share link has expired")
	}
	file, err := s.files.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shared file no longer exists")
		}
		return nil, storeError(err, "failed to load shared file")
	}
	return &SharedFile{Link: *link, File: *file}, nil
}

// Download streams the shared file and counts the access.
func (s *ShareService) Download(ctx context.Context, token string, meta AccessMeta) (*FileContent, error) {
	shared, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	file := shared.File
	content, err := s.files.open(ctx, &file, false)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IncrementAccess(ctx, shared.Link.ID); err != nil {
		s.logger.Warn("increment share access failed", zap.String("share_id", shared.Link.ID), zap.Error(err))
	}
	s.files.recordAccess(ctx, &file, nil, models.FileAccessShareDownload, meta)
	return content, nil
}

// Revoke deactivates a link created by the actor.
func (s *ShareService) Revoke(ctx context.Context, shareID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !validID(shareID) {
		return appErrors.Clone(appErrors.ErrNotFound, "share link not found")
	}
	if err := s.repo.Revoke(ctx, shareID, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "share link not found")
		}
		return storeError(err, "failed to revoke share link")
	}
	s.logger.Info("share link revoked", zap.String("share_id", shareID))
	return nil
}

var _ shareTokenSigner = (*storage.SignedURLSigner)(nil)
