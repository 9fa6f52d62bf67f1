package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Supported export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// ErrUnsupportedFormat is returned by ForFormat for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Table is one titled block of rows. Every row must have len(Headers) cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Document groups the tables rendered into a single export.
type Document struct {
	Title       string
	GeneratedAt time.Time
	Tables      []Table
}

// Renderer writes a Document in a concrete format.
type Renderer interface {
	ContentType() string
	Extension() string
	Render(w io.Writer, doc Document) error
}

// ForFormat returns the renderer registered for format.
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV, "":
		return NewCSVRenderer(), nil
	case FormatPDF:
		return NewPDFRenderer(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func validate(doc Document) error {
	if len(doc.Tables) == 0 {
		return fmt.Errorf("document has no tables")
	}
	for i, table := range doc.Tables {
		if len(table.Headers) == 0 {
			return fmt.Errorf("table %d has no headers", i)
		}
		for j, row := range table.Rows {
			if len(row) != len(table.Headers) {
				return fmt.Errorf("table %d row %d has %d cells, want %d", i, j, len(row), len(table.Headers))
			}
		}
	}
	return nil
}
