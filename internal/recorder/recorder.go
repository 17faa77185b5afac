// Package recorder writes build outcomes to the result sheet and reads them
// back.
package recorder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/workbook"
)

// Column headers of the result sheet
const (
	ColumnBuildNumber = "Build Number"
	ColumnStatus      = "Status"
)

// Store is the tabular store results are written to
type Store interface {
	ResetSheet(sheet string) error
	SetCell(sheet string, col, row int, value string) error
	SetCellByName(sheet, column string, row int, value string) error
	RowCount(sheet string) (int, error)
	CellByName(sheet, column string, row int) (string, error)
}

// Recorder owns the result sheet of a workbook
type Recorder struct {
	store Store
	sheet string
}

// New creates a recorder for the named result sheet
func New(store Store, sheet string) *Recorder {
	return &Recorder{store: store, sheet: sheet}
}

// Sheet returns the name of the result sheet
func (r *Recorder) Sheet() string {
	return r.sheet
}

// Reset clears the result sheet, creating it when absent, and writes the
// header row
func (r *Recorder) Reset() error {
	if err := r.store.ResetSheet(r.sheet); err != nil {
		return err
	}
	if err := r.store.SetCell(r.sheet, 0, 0, ColumnBuildNumber); err != nil {
		return fmt.Errorf("failed to write result header: %w", err)
	}
	if err := r.store.SetCell(r.sheet, 1, 0, ColumnStatus); err != nil {
		return fmt.Errorf("failed to write result header: %w", err)
	}
	return nil
}

// Record writes one build outcome on the given row. Columns are found by
// header name, so a sheet whose columns were reordered is still written
// correctly.
func (r *Recorder) Record(row int, rec model.BuildRecord) error {
	if err := r.set(ColumnBuildNumber, row, strconv.Itoa(rec.Number)); err != nil {
		return err
	}
	return r.set(ColumnStatus, row, string(rec.Status))
}

func (r *Recorder) set(column string, row int, value string) error {
	err := r.store.SetCellByName(r.sheet, column, row, value)
	if errors.Is(err, workbook.ErrColumnNotFound) {
		return &model.ConfigurationError{Sheet: r.sheet, Field: column, Reason: "result column is missing", Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to record %s on row %d: %w", column, row, err)
	}
	return nil
}

// Read returns the outcomes recorded in the result sheet, in row order. Rows
// without a build number are skipped.
func (r *Recorder) Read() ([]model.BuildRecord, error) {
	count, err := r.store.RowCount(r.sheet)
	if err != nil {
		return nil, err
	}

	var records []model.BuildRecord
	for row := 1; row < count; row++ {
		number, err := r.store.CellByName(r.sheet, ColumnBuildNumber, row)
		if err != nil {
			return nil, err
		}
		number = strings.TrimSpace(number)
		if number == "" {
			continue
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			return nil, fmt.Errorf("invalid build number %q on row %d of sheet %q: %w", number, row, r.sheet, err)
		}
		status, err := r.store.CellByName(r.sheet, ColumnStatus, row)
		if err != nil {
			return nil, err
		}
		records = append(records, model.BuildRecord{Number: n, Status: model.BuildStatus(strings.TrimSpace(status))})
	}
	return records, nil
}
