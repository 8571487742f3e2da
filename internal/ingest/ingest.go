// Package ingest turns local spreadsheet files into the row-of-fields records
// the classification pipeline consumes. It is the ingestion collaborator that
// sits outside the core pipeline: the pipeline itself never touches files.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadFile reads an .xlsx or .csv file into field-map records, keyed by the
// header row.
func ReadFile(path string) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported file type: %s (expected .xlsx or .csv)", path)
	}
}

// ReadXLSX reads the first sheet of an xlsx workbook. The first row is the
// header; every later row becomes one record. Rows wider than the header keep
// their trailing cells under positional keys so section labels in unheadered
// columns are not lost.
func ReadXLSX(path string) ([]map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return recordsFromRows(rows), nil
}

// ReadCSV reads comma-separated rows with a header row.
func ReadCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return recordsFromRows(rows), nil
}

func recordsFromRows(rows [][]string) []map[string]string {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0]
	var records []map[string]string
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		record := make(map[string]string, len(row))
		for i, cell := range row {
			key := fmt.Sprintf("column%d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				key = strings.TrimSpace(header[i])
			}
			record[key] = strings.TrimSpace(cell)
		}
		records = append(records, record)
	}
	return records
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
