package models

import "time"

// BulkUploadStatus captures the job lifecycle.
type BulkUploadStatus string

const (
	BulkUploadQueued     BulkUploadStatus = "QUEUED"
	BulkUploadProcessing BulkUploadStatus = "PROCESSING"
	BulkUploadCompleted  BulkUploadStatus = "COMPLETED"
	BulkUploadFailed     BulkUploadStatus = "FAILED"
)

// Terminal reports whether no further processing will happen.
func (s BulkUploadStatus) Terminal() bool {
	return s == BulkUploadCompleted || s == BulkUploadFailed
}

// BulkItemStatus is the outcome of one file in a bulk submission.
type BulkItemStatus string

const (
	BulkItemPending   BulkItemStatus = "PENDING"
	BulkItemCreated   BulkItemStatus = "CREATED"
	BulkItemDuplicate BulkItemStatus = "DUPLICATE"
	BulkItemFailed    BulkItemStatus = "FAILED"
)

// BulkUploadJob is the persisted handle returned to clients on submission.
type BulkUploadJob struct {
	ID           string           `db:"id" json:"id"`
	OwnerID      string           `db:"owner_id" json:"owner_id"`
	Status       BulkUploadStatus `db:"status" json:"status"`
	TotalItems   int              `db:"total_items" json:"total_items"`
	Attempts     int              `db:"attempts" json:"attempts"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
	FinishedAt   *time.Time       `db:"finished_at" json:"finished_at,omitempty"`
}

// BulkUploadItem tracks one file of a job. FileID is assigned at submission so
// a retried item can recognise the record it created on an earlier attempt.
type BulkUploadItem struct {
	JobID            string         `db:"job_id" json:"-"`
	Position         int            `db:"position" json:"position"`
	OriginalFilename string         `db:"original_filename" json:"original_filename"`
	DeclaredSize     int64          `db:"declared_size" json:"declared_size"`
	MimeType         string         `db:"mime_type" json:"mime_type"`
	StagingKey       *string        `db:"staging_key" json:"-"`
	FileID           string         `db:"file_id" json:"file_id"`
	Status           BulkItemStatus `db:"status" json:"status"`
	ContentHash      *string        `db:"content_hash" json:"content_hash,omitempty"`
	ErrorCode        *string        `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage     *string        `db:"error_message" json:"error_message,omitempty"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// BulkUploadSummary counts item outcomes.
type BulkUploadSummary struct {
	Total      int `json:"total"`
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
}

// BulkUploadReport is what clients poll for.
type BulkUploadReport struct {
	Job     BulkUploadJob     `json:"job"`
	Summary BulkUploadSummary `json:"summary"`
	Items   []BulkUploadItem  `json:"items"`
}

// Summarize counts item outcomes.
func Summarize(items []BulkUploadItem) BulkUploadSummary {
	s := BulkUploadSummary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case BulkItemCreated:
			s.Created++
		case BulkItemDuplicate:
			s.Duplicates++
		case BulkItemFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}
