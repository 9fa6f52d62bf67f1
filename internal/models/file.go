package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileRecord is one row of the files table.
type FileRecord struct {
	ID               string     `db:"id" json:"id"`
	OwnerID          string     `db:"owner_id" json:"owner_id"`
	OriginalFilename string     `db:"original_filename" json:"original_filename"`
	StorageKey       string     `db:"storage_key" json:"-"`
	ContentHash      string     `db:"content_hash" json:"content_hash"`
	SizeBytes        int64      `db:"size_bytes" json:"size_bytes"`
	FileType         string     `db:"file_type" json:"file_type"`
	MimeType         string     `db:"mime_type" json:"mime_type"`
	Description      string     `db:"description" json:"description"`
	ViewCount        int        `db:"view_count" json:"view_count"`
	UploadedAt       time.Time  `db:"uploaded_at" json:"uploaded_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	LastAccessedAt   *time.Time `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
}

// FileFilter is the conjunctive criteria set applied to an owner's files.
// Zero values mean "no constraint".
type FileFilter struct {
	OwnerID        string
	Search         string
	FileTypes      []string
	UploadedAfter  *time.Time
	UploadedBefore *time.Time
	MinSize        *int64
	MaxSize        *int64
	// AccessedWithinDays keeps files read in the last N days.
	AccessedWithinDays *int
}

// MaxAccessedWithinDays bounds the recently accessed window.
const MaxAccessedWithinDays = 365

// ErrInvertedRange reports a lower bound greater than its upper bound.
var ErrInvertedRange = errors.New("range lower bound is greater than upper bound")

// Normalize trims the search term and lower-cases, deduplicates and sorts file types.
func (f FileFilter) Normalize() FileFilter {
	f.Search = strings.TrimSpace(f.Search)
	if len(f.FileTypes) == 0 {
		f.FileTypes = nil
		return f
	}
	seen := make(map[string]struct{}, len(f.FileTypes))
	types := make([]string, 0, len(f.FileTypes))
	for _, raw := range f.FileTypes {
		t := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	sort.Strings(types)
	if len(types) == 0 {
		types = nil
	}
	f.FileTypes = types
	return f
}

// Validate rejects inverted date or size ranges.
func (f FileFilter) Validate() error {
	if f.UploadedAfter != nil && f.UploadedBefore != nil && f.UploadedAfter.After(*f.UploadedBefore) {
		return fmt.Errorf("uploaded_after/uploaded_before: %w", ErrInvertedRange)
	}
	if f.MinSize != nil && *f.MinSize < 0 {
		return fmt.Errorf("min_size must not be negative")
	}
	if f.MaxSize != nil && *f.MaxSize < 0 {
		return fmt.Errorf("max_size must not be negative")
	}
	if f.MinSize != nil && f.MaxSize != nil && *f.MinSize > *f.MaxSize {
		return fmt.Errorf("min_size/max_size: %w", ErrInvertedRange)
	}
	if f.AccessedWithinDays != nil && (*f.AccessedWithinDays < 1 || *f.AccessedWithinDays > MaxAccessedWithinDays) {
		return fmt.Errorf("recently_accessed must be between 1 and %d days", MaxAccessedWithinDays)
	}
	return nil
}

// Fingerprint is a stable digest of the normalized filter. Cursors carry it so a
// token cannot be replayed against a different result set.
func (f FileFilter) Fingerprint() string {
	n := f.Normalize()
	parts := []string{
		"owner=" + n.OwnerID,
		"q=" + strings.ToLower(n.Search),
		"types=" + strings.Join(n.FileTypes, ","),
		"after=" + formatBound(n.UploadedAfter),
		"before=" + formatBound(n.UploadedBefore),
		"min=" + formatSize(n.MinSize),
		"max=" + formatSize(n.MaxSize),
		"recent=" + formatDays(n.AccessedWithinDays),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatDays(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatSize(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// FilePage is one page of an owner's files in uploaded_at DESC, id DESC order.
type FilePage struct {
	Items      []FileRecord     `json:"items"`
	Pagination CursorPagination `json:"pagination"`
}

// FileTypeStat aggregates files of one type.
type FileTypeStat struct {
	FileType   string `db:"file_type" json:"file_type"`
	Count      int64  `db:"count" json:"count"`
	TotalBytes int64  `db:"total_bytes" json:"total_bytes"`
}

// FileStats summarises an owner's storage usage.
type FileStats struct {
	TotalFiles       int64          `json:"total_files"`
	TotalBytes       int64          `json:"total_bytes"`
	TotalSizeDisplay string         `json:"total_size_display"`
	RecentUploads    int64          `json:"recent_uploads"`
	ByType           []FileTypeStat `json:"by_type"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// FileAccessType labels an access log row.
type FileAccessType string

const (
	FileAccessView          FileAccessType = "view"
	FileAccessDownload      FileAccessType = "download"
	FileAccessPreview       FileAccessType = "preview"
	FileAccessShareDownload FileAccessType = "share_download"
)

// FileAccessLog records a read of a file.
type FileAccessLog struct {
	ID         int64          `db:"id" json:"id"`
	FileID     string         `db:"file_id" json:"file_id"`
	UserID     *string        `db:"user_id" json:"user_id,omitempty"`
	AccessType FileAccessType `db:"access_type" json:"access_type"`
	IPAddress  string         `db:"ip_address" json:"ip_address"`
	UserAgent  string         `db:"user_agent" json:"user_agent"`
	AccessedAt time.Time      `db:"accessed_at" json:"accessed_at"`
}

// HumanSize renders a byte count with binary units, e.g. "1.5 MB".
func HumanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 4; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTP"[exp])
}
