package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RowStatus classifies one parsed row.
type RowStatus int

const (
	RowOK RowStatus = iota
	RowSkipped
	RowFatal
)

func (s RowStatus) String() string {
	switch s {
	case RowOK:
		return "ok"
	case RowSkipped:
		return "skipped"
	case RowFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// RowResult is the outcome of parsing one row. Line is the 1-based line in the source, counting
// the header. Column names the cell that could not be read, if any.
type RowResult[T any] struct {
	Line   int
	Status RowStatus
	Reason string
	Column string
	Value  T
}

func parsed[T any](line int, v T) RowResult[T] {
	return RowResult[T]{Line: line, Status: RowOK, Value: v}
}

func skipped[T any](line int, format string, args ...any) RowResult[T] {
	return RowResult[T]{Line: line, Status: RowSkipped, Reason: fmt.Sprintf(format, args...)}
}

func malformed[T any](line int, column, format string, args ...any) RowResult[T] {
	res := skipped[T](line, format, args...)
	res.Column = column
	return res
}

func fatal[T any](line int, format string, args ...any) RowResult[T] {
	return RowResult[T]{Line: line, Status: RowFatal, Reason: fmt.Sprintf(format, args...)}
}

// Summary counts the rows of one ingestion by outcome.
type Summary struct {
	Rows    int            `json:"rows"`
	OK      int            `json:"ok"`
	Skipped int            `json:"skipped"`
	Reasons map[string]int `json:"reasons,omitempty"`
}

func (s *Summary) count(status RowStatus, reason string) {
	s.Rows++
	switch status {
	case RowOK:
		s.OK++
	case RowSkipped:
		s.Skipped++
		if s.Reasons == nil {
			s.Reasons = make(map[string]int)
		}
		// keyed by the leading clause, e.g. "malformed price"
		key, _, _ := strings.Cut(reason, ":")
		s.Reasons[key]++
	}
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// parseInt reads an integral cell, accepting "2019.0" as written by spreadsheet tools.
func parseInt(s string) (int, error) {
	v, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(v), nil
}
