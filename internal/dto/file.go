package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/file-manager-api/internal/models"
)

const dateOnly = "2006-01-02"

// FileListQuery captures GET /files query parameters.
type FileListQuery struct {
	Search           string   `form:"search"`
	FileTypes        []string `form:"file_type"`
	UploadedAfter    string   `form:"uploaded_after"`
	UploadedBefore   string   `form:"uploaded_before"`
	MinSize          *int64   `form:"min_size"`
	MaxSize          *int64   `form:"max_size"`
	RecentlyAccessed *int     `form:"recently_accessed"`
	Cursor           string   `form:"cursor"`
	PageSize         int      `form:"page_size"`
}

// Filter converts the query into a file filter. Date bounds accept RFC3339 or
// YYYY-MM-DD; a date-only upper bound covers the whole day.
func (q FileListQuery) Filter() (models.FileFilter, error) {
	filter := models.FileFilter{
		Search:             q.Search,
		MinSize:            q.MinSize,
		MaxSize:            q.MaxSize,
		AccessedWithinDays: q.RecentlyAccessed,
	}
	for _, raw := range q.FileTypes {
		filter.FileTypes = append(filter.FileTypes, strings.Split(raw, ",")...)
	}

	after, err := parseBound(q.UploadedAfter, false)
	if err != nil {
		return filter, fmt.Errorf("uploaded_after: %w", err)
	}
	before, err := parseBound(q.UploadedBefore, true)
	if err != nil {
		return filter, fmt.Errorf("uploaded_before: %w", err)
	}
	filter.UploadedAfter = after
	filter.UploadedBefore = before
	return filter.Normalize(), nil
}

func parseBound(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// UpdateDescriptionRequest is the PATCH /files/:id payload.
type UpdateDescriptionRequest struct {
	Description *string `json:"description"`
}

// BulkDeleteRequest is the POST /files/bulk-delete payload.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
}

// BulkDeleteResponse lists per-id outcomes.
type BulkDeleteResponse struct {
	Results []BulkDeleteItem `json:"results"`
	Deleted int              `json:"deleted"`
	Failed  int              `json:"failed"`
}

// BulkDeleteItem is the outcome for one requested id.
type BulkDeleteItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
