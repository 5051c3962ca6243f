// Package tabular provides a minimal column-ordered table used as the
// interchange format between the fetch pipelines, the CSV exporter, and the
// validator. Cells are stored as strings; numeric interpretation is left to
// the consumer.
package tabular

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Frame is an in-memory table: an ordered list of column names and rows of
// cells aligned with those columns.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty Frame with the given column order.
func New(columns ...string) *Frame {
	return &Frame{Columns: columns}
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool {
	return len(f.Rows) == 0
}

// Append adds one row. The cell count must match the column count.
func (f *Frame) Append(cells ...string) error {
	if len(cells) != len(f.Columns) {
		return fmt.Errorf("tabular: row has %d cells, frame has %d columns", len(cells), len(f.Columns))
	}
	f.Rows = append(f.Rows, cells)
	return nil
}

// Column returns the index of the named column, or -1 when absent.
func (f *Frame) Column(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// FromRecords builds a Frame from a sequence of name→value records, such as
// the row maps returned by a query API. When columns is non-nil it fixes the
// column order; otherwise the order is the sorted union of all keys seen,
// since Go maps carry no insertion order. Missing cells are empty strings.
func FromRecords(records []map[string]any, columns []string) *Frame {
	if columns == nil {
		seen := make(map[string]bool)
		for _, rec := range records {
			for k := range rec {
				seen[k] = true
			}
		}
		columns = make([]string, 0, len(seen))
		for k := range seen {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	f := &Frame{Columns: columns, Rows: make([][]string, 0, len(records))}
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := rec[col]; ok {
				row[i] = FormatCell(v)
			}
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// FormatCell renders a decoded JSON value as a CSV cell. Nulls and NaNs
// become empty cells; integral floats render without a trailing ".0".
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", x)
	}
}
