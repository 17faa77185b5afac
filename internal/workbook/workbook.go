// Package workbook provides the tabular store the job runner reads its
// configuration from and writes its results to: an ordered set of named
// sheets, each an ordered list of rows whose first row is the header.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	ErrSheetNotFound  = errors.New("sheet not found")
	ErrColumnNotFound = errors.New("column header not found")
	ErrRowNotFound    = errors.New("row not found")
)

// backend is a file format the workbook can be decoded from and encoded to
type backend interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
	SetCell(sheet string, col, row int, value string) error
	ResetSheet(sheet string) error
	Encode(w io.Writer) error
	Close() error
}

// Workbook is an open tabular store. Reads are served from a per-sheet cache
// that is dropped whenever the sheet is written to.
type Workbook struct {
	fs      afero.Fs
	path    string
	backend backend

	rows    map[string][][]string
	headers map[string]map[string]int
}

// Open loads the workbook at path. The format is chosen from the extension:
// .xlsx/.xlsm for spreadsheets, .yaml/.yml for YAML workbooks.
func Open(fs afero.Fs, path string) (*Workbook, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", path, err)
	}

	var b backend
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		b, err = decodeXLSX(bytes.NewReader(data))
	case ".yaml", ".yml":
		b, err = decodeYAML(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported workbook format %q (expected .xlsx, .xlsm, .yaml or .yml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse workbook %s: %w", path, err)
	}

	return &Workbook{
		fs:      fs,
		path:    path,
		backend: b,
		rows:    make(map[string][][]string),
		headers: make(map[string]map[string]int),
	}, nil
}

// Path returns the location the workbook was opened from
func (w *Workbook) Path() string {
	return w.path
}

// Sheets returns the sheet names in workbook order
func (w *Workbook) Sheets() []string {
	return w.backend.SheetNames()
}

// HasSheet reports whether a sheet with the given name exists
func (w *Workbook) HasSheet(sheet string) bool {
	for _, name := range w.backend.SheetNames() {
		if name == sheet {
			return true
		}
	}
	return false
}

func (w *Workbook) sheetRows(sheet string) ([][]string, error) {
	if rows, ok := w.rows[sheet]; ok {
		return rows, nil
	}
	if !w.HasSheet(sheet) {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	rows, err := w.backend.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	w.rows[sheet] = rows
	return rows, nil
}

// RowCount returns the number of rows in the sheet, header included
func (w *Workbook) RowCount(sheet string) (int, error) {
	rows, err := w.sheetRows(sheet)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Row returns a copy of the cells of a row
func (w *Workbook) Row(sheet string, row int) ([]string, error) {
	rows, err := w.sheetRows(sheet)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= len(rows) {
		return nil, fmt.Errorf("%w: row %d is not defined in sheet %q", ErrRowNotFound, row+1, sheet)
	}
	return append([]string(nil), rows[row]...), nil
}

// Cell returns the value at (col, row). A missing cell in an existing row
// reads as the empty string.
func (w *Workbook) Cell(sheet string, col, row int) (string, error) {
	cells, err := w.Row(sheet, row)
	if err != nil {
		return "", err
	}
	if col < 0 || col >= len(cells) {
		logrus.WithFields(logrus.Fields{"sheet": sheet, "column": col + 1, "row": row + 1}).Debug("Cell is not defined.")
		return "", nil
	}
	return cells[col], nil
}

// ColumnIndex resolves a header name to its column index
func (w *Workbook) ColumnIndex(sheet, column string) (int, error) {
	header, ok := w.headers[sheet]
	if !ok {
		rows, err := w.sheetRows(sheet)
		if err != nil {
			return -1, err
		}
		if len(rows) == 0 {
			return -1, fmt.Errorf("%w: header row is not defined in sheet %q", ErrRowNotFound, sheet)
		}
		header = make(map[string]int, len(rows[0]))
		for i, name := range rows[0] {
			name = strings.TrimSpace(name)
			if _, seen := header[name]; !seen {
				header[name] = i
			}
		}
		w.headers[sheet] = header
	}

	idx, ok := header[column]
	if !ok {
		return -1, fmt.Errorf("%w: %q is not defined in sheet %q", ErrColumnNotFound, column, sheet)
	}
	return idx, nil
}

// CellByName returns the value in the named column of a row
func (w *Workbook) CellByName(sheet, column string, row int) (string, error) {
	col, err := w.ColumnIndex(sheet, column)
	if err != nil {
		return "", err
	}
	return w.Cell(sheet, col, row)
}

// SetCell writes a value at (col, row), creating the row if needed
func (w *Workbook) SetCell(sheet string, col, row int, value string) error {
	if !w.HasSheet(sheet) {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	if col < 0 || row < 0 {
		return fmt.Errorf("invalid cell coordinates (%d, %d)", col, row)
	}
	if err := w.backend.SetCell(sheet, col, row, value); err != nil {
		return fmt.Errorf("failed to write cell (%d, %d) in sheet %q: %w", col, row, sheet, err)
	}
	w.invalidate(sheet)
	return nil
}

// SetCellByName writes a value in the named column of a row
func (w *Workbook) SetCellByName(sheet, column string, row int, value string) error {
	col, err := w.ColumnIndex(sheet, column)
	if err != nil {
		return err
	}
	return w.SetCell(sheet, col, row, value)
}

// ResetSheet creates the sheet, or clears every row of an existing one
func (w *Workbook) ResetSheet(sheet string) error {
	if err := w.backend.ResetSheet(sheet); err != nil {
		return fmt.Errorf("failed to reset sheet %q: %w", sheet, err)
	}
	w.invalidate(sheet)
	return nil
}

func (w *Workbook) invalidate(sheet string) {
	delete(w.rows, sheet)
	delete(w.headers, sheet)
}

// Save persists the workbook back to the location it was opened from. The
// content is written to a temporary file first and renamed into place.
func (w *Workbook) Save() error {
	var buf bytes.Buffer
	if err := w.backend.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode workbook: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := afero.WriteFile(w.fs, tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write workbook to %s: %w", tmp, err)
	}
	if err := w.fs.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("failed to replace workbook %s: %w", w.path, err)
	}
	return nil
}

// Close releases the resources held by the backend
func (w *Workbook) Close() error {
	return w.backend.Close()
}
