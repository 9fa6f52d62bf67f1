package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/repository"
	"github.com/noah-isme/file-manager-api/pkg/cursor"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
)

const listCachePrefix = "files:list:"

type filePageReader interface {
	ListPage(ctx context.Context, q repository.FilePageQuery) ([]models.FileRecord, error)
}

// SearchConfig tunes page sizes and the page cache.
type SearchConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	CacheTTL        time.Duration
}

// ListRequest is a filtered page request. Filter.OwnerID is always replaced by the actor.
type ListRequest struct {
	Filter   models.FileFilter
	Cursor   string
	PageSize int
}

// SearchService serves cursor paginated listings of an owner's files.
type SearchService struct {
	files  filePageReader
	codec  *cursor.Codec
	cache  *CacheService
	logger *zap.Logger
	cfg    SearchConfig
}

// NewSearchService constructs a SearchService.
func NewSearchService(files filePageReader, codec *cursor.Codec, cache *CacheService, logger *zap.Logger, cfg SearchConfig) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return &SearchService{files: files, codec: codec, cache: cache, logger: logger, cfg: cfg}
}

// List returns one page in uploaded_at DESC, id DESC order. The boolean reports a cache hit.
func (s *SearchService) List(ctx context.Context, req ListRequest, actor *models.JWTClaims) (*models.FilePage, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	filter := req.Filter
	filter.OwnerID = actor.UserID
	filter = filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	size := s.clampPageSize(req.PageSize)
	fingerprint := filter.Fingerprint()

	var position *cursor.Cursor
	if req.Cursor != "" {
		decoded, err := s.codec.Decode(req.Cursor, fingerprint)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInvalidCursor.Code, appErrors.ErrInvalidCursor.Status, appErrors.ErrInvalidCursor.Message)
		}
		position = &decoded
	}

	key := listCacheKey(actor.UserID, fingerprint, req.Cursor, size)
	var cached models.FilePage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	query := repository.FilePageQuery{Filter: filter, Limit: size + 1}
	if position != nil {
		query.After = &repository.Keyset{UploadedAt: position.UploadedAt, ID: position.ID}
		query.Backward = position.Direction == cursor.Prev
	}
	rows, err := s.files.ListPage(ctx, query)
	if err != nil {
		return nil, false, storeError(err, "failed to list files")
	}
	if query.Backward && len(rows) <= size {
		// Walked back past the newest row: serve the first page instead.
		position = nil
		query = repository.FilePageQuery{Filter: filter, Limit: size + 1}
		if rows, err = s.files.ListPage(ctx, query); err != nil {
			return nil, false, storeError(err, "failed to list files")
		}
	}

	hasMore := len(rows) > size
	if hasMore {
		rows = rows[:size]
	}
	if query.Backward {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	if rows == nil {
		rows = []models.FileRecord{}
	}

	page := &models.FilePage{Items: rows, Pagination: models.CursorPagination{PageSize: size}}
	if err := s.fillTokens(page, position, hasMore, fingerprint); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode cursor")
	}

	_ = s.cache.Set(ctx, key, page, s.cfg.CacheTTL)
	return page, false, nil
}

// fillTokens sets next/previous tokens. Walking forward there are newer rows
// whenever a cursor was given; walking backward there are always older rows.
// A backward walk that reaches the newest row never gets here; List restarts it
// as a first page.
func (s *SearchService) fillTokens(page *models.FilePage, position *cursor.Cursor, hasMore bool, fingerprint string) error {
	backward := position != nil && position.Direction == cursor.Prev
	hasNext := hasMore
	hasPrev := position != nil
	if backward {
		hasNext = true
		hasPrev = hasMore
	}

	items := page.Items
	var first, last *cursor.Cursor
	if len(items) > 0 {
		first = &cursor.Cursor{UploadedAt: items[0].UploadedAt, ID: items[0].ID}
		last = &cursor.Cursor{UploadedAt: items[len(items)-1].UploadedAt, ID: items[len(items)-1].ID}
	} else if position != nil {
		// Every older row past the cursor is gone; the way back starts at the cursor itself.
		first = &cursor.Cursor{UploadedAt: position.UploadedAt, ID: position.ID}
		hasNext = false
	}

	if hasNext && last != nil {
		token, err := s.codec.Encode(cursor.Cursor{Direction: cursor.Next, UploadedAt: last.UploadedAt, ID: last.ID, Filter: fingerprint})
		if err != nil {
			return err
		}
		page.Pagination.NextCursor = &token
	}
	if hasPrev && first != nil {
		token, err := s.codec.Encode(cursor.Cursor{Direction: cursor.Prev, UploadedAt: first.UploadedAt, ID: first.ID, Filter: fingerprint})
		if err != nil {
			return err
		}
		page.Pagination.PreviousCursor = &token
	}
	return nil
}

func (s *SearchService) clampPageSize(size int) int {
	switch {
	case size <= 0:
		return s.cfg.DefaultPageSize
	case size > s.cfg.MaxPageSize:
		return s.cfg.MaxPageSize
	default:
		return size
	}
}

func listCacheKey(ownerID, fingerprint, token string, size int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", fingerprint, token, size)))
	return listCachePrefix + ownerID + ":" + hex.EncodeToString(sum[:])
}

func listCachePattern(ownerID string) string {
	return listCachePrefix + ownerID + ":*"
}
