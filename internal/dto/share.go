package dto

import (
	"time"

	"github.com/noah-isme/file-manager-api/internal/models"
)

// CreateShareRequest is the POST /files/:id/shares payload. Zero uses the default lifetime.
type CreateShareRequest struct {
	TTLSeconds int64 `json:"ttl_seconds" validate:"omitempty,min=60"`
}

// TTL returns the requested lifetime.
func (r CreateShareRequest) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// ShareResponse is returned when a link is created.
type ShareResponse struct {
	Link  models.ShareLink `json:"link"`
	Token string           `json:"token"`
	URL   string           `json:"url"`
}

// SharedFileResponse is the public view of a shared file.
type SharedFileResponse struct {
	File        SharedFileInfo `json:"file"`
	ExpiresAt   time.Time      `json:"expires_at"`
	DownloadURL string         `json:"download_url"`
}

// SharedFileInfo omits owner details from public responses.
type SharedFileInfo struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	MimeType         string    `json:"mime_type"`
	Description      string    `json:"description"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// NewSharedFileInfo strips a file record down to its public fields.
func NewSharedFileInfo(file models.FileRecord) SharedFileInfo {
	return SharedFileInfo{
		ID:               file.ID,
		OriginalFilename: file.OriginalFilename,
		SizeBytes:        file.SizeBytes,
		MimeType:         file.MimeType,
		Description:      file.Description,
		UploadedAt:       file.UploadedAt,
	}
}
