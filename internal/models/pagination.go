package models

// CursorPagination is the pagination block of list responses. A nil cursor
// means there is no page in that direction.
type CursorPagination struct {
	NextCursor     *string `json:"next_cursor"`
	PreviousCursor *string `json:"previous_cursor"`
	PageSize       int     `json:"page_size"`
}
