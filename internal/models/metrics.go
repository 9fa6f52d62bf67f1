package models

import "time"

// SystemMetrics is a JSON friendly snapshot of in-process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	UploadsCreated           uint64    `json:"uploads_created"`
	UploadsDuplicate         uint64    `json:"uploads_duplicate"`
	UploadsFailed            uint64    `json:"uploads_failed"`
	UploadedBytes            uint64    `json:"uploaded_bytes"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
