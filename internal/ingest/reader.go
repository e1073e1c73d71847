package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/facturio/invoice-engine/internal/domain"
)

// rowSource yields one record at a time so a pass over the file never
// materializes it fully.
type rowSource interface {
	// Next returns the next record, or ok=false at end of input.
	Next() (record []string, ok bool, err error)
	Close() error
}

// openSource selects a reader by file extension.
func openSource(path string) (rowSource, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return openCSVSource(path)
	case ".xlsx", ".xls":
		return openExcelSource(path)
	default:
		return nil, fmt.Errorf("%w: %q (expected .csv, .xlsx or .xls)", domain.ErrUnsupportedFormat, ext)
	}
}

type csvSource struct {
	file   *os.File
	reader *csv.Reader
}

func openCSVSource(path string) (*csvSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}

	reader := csv.NewReader(file)
	// Ragged rows are handled during column mapping, not rejected here.
	reader.FieldsPerRecord = -1

	return &csvSource{file: file, reader: reader}, nil
}

func (s *csvSource) Next() ([]string, bool, error) {
	record, err := s.reader.Read()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read csv record: %w", err)
	}
	return record, true, nil
}

func (s *csvSource) Close() error {
	return s.file.Close()
}

type excelSource struct {
	file *excelize.File
	rows *excelize.Rows
}

func openExcelSource(path string) (*excelSource, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	sheet := file.GetSheetName(0)
	rows, err := file.Rows(sheet)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to iterate sheet %q: %w", sheet, err)
	}

	return &excelSource{file: file, rows: rows}, nil
}

func (s *excelSource) Next() ([]string, bool, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, false, fmt.Errorf("failed to advance sheet row: %w", err)
		}
		return nil, false, nil
	}

	record, err := s.rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read sheet row: %w", err)
	}
	return record, true, nil
}

func (s *excelSource) Close() error {
	_ = s.rows.Close()
	return s.file.Close()
}
