// Package export writes stored results as JSON, XLSX workbooks and PDF reports.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

// WriteJSON writes results wrapped in a SubmissionExport envelope.
func WriteJSON(w io.Writer, results []model.StudentResult, now time.Time) error {
	data, err := json.MarshalIndent(model.SubmissionExport{
		ExportedAt: now.UTC(),
		Count:      len(results),
		Results:    results,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}
