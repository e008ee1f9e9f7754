package tasks

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var exportHeader = []string{"id", "title", "completed", "createdAt", "updatedAt"}

// WriteCSV renders tasks as RFC4180 CSV. encoding/csv quotes fields that
// contain commas or quotes and doubles embedded quotes.
func WriteCSV(w io.Writer, list []Task) error {
	writer := csv.NewWriter(w)
	writer.UseCRLF = true

	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, t := range list {
		row := []string{
			t.ID,
			t.Title,
			strconv.FormatBool(t.Completed),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
