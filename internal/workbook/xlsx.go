package workbook

import (
	"io"

	"github.com/xuri/excelize/v2"
)

type xlsxBackend struct {
	file *excelize.File
}

func decodeXLSX(r io.Reader) (*xlsxBackend, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	return &xlsxBackend{file: f}, nil
}

func (b *xlsxBackend) SheetNames() []string {
	return b.file.GetSheetList()
}

func (b *xlsxBackend) Rows(sheet string) ([][]string, error) {
	return b.file.GetRows(sheet)
}

func (b *xlsxBackend) SetCell(sheet string, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	return b.file.SetCellStr(sheet, cell, value)
}

// ResetSheet clears an existing sheet in place and creates a missing one
func (b *xlsxBackend) ResetSheet(sheet string) error {
	idx, err := b.file.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx == -1 {
		_, err := b.file.NewSheet(sheet)
		return err
	}

	rows, err := b.file.GetRows(sheet)
	if err != nil {
		return err
	}
	for i := len(rows); i >= 1; i-- {
		if err := b.file.RemoveRow(sheet, i); err != nil {
			return err
		}
	}
	return nil
}

func (b *xlsxBackend) Encode(w io.Writer) error {
	return b.file.Write(w)
}

func (b *xlsxBackend) Close() error {
	return b.file.Close()
}
