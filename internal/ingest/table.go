package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSchema is returned when an input table lacks a required column or cannot be read as a table.
var ErrSchema = errors.New("input schema mismatch")

// Table is a header row plus data rows, read from CSV or the first sheet of an XLSX workbook.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
}

// ReadTable loads a table, choosing the reader by file extension.
func ReadTable(path string) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file extension %q for %s", ErrSchema, ext, path)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", ErrSchema, path)
	}
	return &Table{Source: path, Header: records[0], Rows: records[1:]}, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv file %s: %w", path, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: xlsx file %s has no sheets", ErrSchema, path)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from %s: %w", path, err)
		}
		records = append(records, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in %s: %w", path, err)
	}
	return records, nil
}

// column describes one logical field and the header spellings accepted for it.
type column struct {
	name     string
	aliases  []string
	optional bool
}

// normalizeHeader folds case and drops separators so "CHUNK_NAME", "chunkName" and
// "Chunk Name" compare equal.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case '_', ' ', '-', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// resolve maps every column to its index in header. A missing required column is a schema error.
func resolve(t *Table, columns []column) (map[string]int, error) {
	positions := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, seen := positions[normalizeHeader(h)]; !seen {
			positions[normalizeHeader(h)] = i
		}
	}

	idx := make(map[string]int, len(columns))
	var missing []string
	for _, c := range columns {
		found := false
		for _, alias := range append([]string{c.name}, c.aliases...) {
			if i, ok := positions[normalizeHeader(alias)]; ok {
				idx[c.name] = i
				found = true
				break
			}
		}
		if !found && !c.optional {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s is missing column(s) %s", ErrSchema, t.Source, strings.Join(missing, ", "))
	}
	return idx, nil
}

// cell returns the trimmed value of a column, or "" when the column or the cell is absent.
func cell(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
