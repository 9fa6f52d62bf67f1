package models

import "time"

// ShareLink grants time-limited public read access to one file.
type ShareLink struct {
	ID          string    `db:"id" json:"id"`
	FileID      string    `db:"file_id" json:"file_id"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	AccessCount int       `db:"access_count" json:"access_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the link is past its expiry at now.
func (s ShareLink) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
