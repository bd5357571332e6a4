package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"invsim/internal/simulation"
)

// Sheet is a rectangular table ready to be written out.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// level renders a service level, leaving undefined levels empty.
func level(s simulation.ServiceLevel) any {
	if !s.Valid {
		return ""
	}
	return s.Value
}

// RunSheet lays out one row per run followed by an averaged row: revenue, sold, demanded,
// overall service level, then one service level per horizon week.
func RunSheet(r *simulation.Report) Sheet {
	header := []string{"run", "revenue", "sold", "demanded", "service_level", "ordered", "discarded", "orders", "holding_cost", "discard_cost", "capacity", "relevance_sold"}
	for _, w := range r.Horizon.Weeks() {
		header = append(header, fmt.Sprintf("sl_week_%d", w))
	}

	rows := make([][]any, 0, len(r.Runs)+1)
	for _, run := range r.Runs {
		row := []any{run.Run, run.Revenue, run.Sold, run.Demanded, level(run.ServiceLevel), run.Ordered, run.Discarded, run.Orders, run.HoldingCost, run.DiscardCost, run.Capacity, run.RelevanceSold}
		for _, w := range run.Weeks {
			row = append(row, level(w.ServiceLevel))
		}
		rows = append(rows, row)
	}

	s := r.Summary
	mean := []any{"mean", s.Revenue, s.Sold, s.Demanded, level(s.ServiceLevel), s.Ordered, s.Discarded, s.Orders, s.HoldingCost, s.DiscardCost, s.Capacity, s.RelevanceSold}
	for _, w := range s.Weeks {
		mean = append(mean, level(w.ServiceLevel))
	}
	rows = append(rows, mean)

	return Sheet{Name: "Runs", Header: header, Rows: rows}
}

// WeekSheet lists the per-week averages across runs.
func WeekSheet(r *simulation.Report) Sheet {
	rows := make([][]any, 0, len(r.Summary.Weeks))
	for _, w := range r.Summary.Weeks {
		rows = append(rows, []any{w.Week, w.Revenue, w.Sold, w.Demanded, level(w.ServiceLevel), w.Capacity, w.Relevance})
	}
	return Sheet{
		Name:   "Weeks",
		Header: []string{"week", "revenue", "sold", "demanded", "service_level", "capacity", "relevance"},
		Rows:   rows,
	}
}

// ExportReport writes the run table, plus the weekly table for workbooks, choosing the format by
// extension.
func ExportReport(path string, r *simulation.Report) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(path, RunSheet(r))
	case ".xlsx":
		return WriteXLSX(path, RunSheet(r), WeekSheet(r))
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

// WriteCSV writes one sheet as CSV.
func WriteCSV(path string, s Sheet) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(s.Header); err != nil {
		return fmt.Errorf("failed to write csv header to %s: %w", path, err)
	}
	record := make([]string, len(s.Header))
	for _, row := range s.Rows {
		record = record[:0]
		for _, v := range row {
			switch x := v.(type) {
			case float64:
				record = append(record, formatFloat(x))
			default:
				record = append(record, fmt.Sprint(x))
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv file %s: %w", path, err)
	}
	return out.Close()
}

// WriteXLSX writes every sheet into one workbook.
func WriteXLSX(path string, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.Name, err)
		}

		header := make([]any, len(s.Header))
		for j, h := range s.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", s.Name, err)
		}
		for j, row := range s.Rows {
			cellName, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.Name, cellName, &row); err != nil {
				return fmt.Errorf("failed to write row %d of %s: %w", j+2, s.Name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save xlsx file %s: %w", path, err)
	}
	return nil
}
