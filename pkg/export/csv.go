package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVRenderer writes each table as a header row followed by its rows, separated by a blank line.
type CSVRenderer struct{}

// NewCSVRenderer builds a CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

func (r *CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }

func (r *CSVRenderer) Extension() string { return ".csv" }

// Render streams the document to w.
func (r *CSVRenderer) Render(w io.Writer, doc Document) error {
	if err := validate(doc); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	for i, table := range doc.Tables {
		if i > 0 {
			if err := writer.Write(nil); err != nil {
				return fmt.Errorf("write csv separator: %w", err)
			}
		}
		if table.Title != "" {
			if err := writer.Write([]string{table.Title}); err != nil {
				return fmt.Errorf("write csv title: %w", err)
			}
		}
		if err := writer.Write(table.Headers); err != nil {
			return fmt.Errorf("write csv headers: %w", err)
		}
		if err := writer.WriteAll(table.Rows); err != nil {
			return fmt.Errorf("write csv rows: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
