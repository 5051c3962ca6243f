package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vaultlens/vaultlens/internal/domain"
	"github.com/vaultlens/vaultlens/internal/tabular"
)

// DateColumns is the ordered candidate list for locating the date column.
// Matching is case-insensitive; the first column (in file order) whose
// lowercased name appears in this list wins.
var DateColumns = []string{"date", "day", "timestamp", "time"}

// ValueColumns is the ordered candidate list for locating the TVL/value
// column, matched the same way as DateColumns.
var ValueColumns = []string{"tvl", "tvl_amount_usd", "total_value_locked", "value", "tvlusd"}

// dateLayouts are tried in order when parsing date cells. Numeric cells are
// additionally interpreted as unix seconds.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000 UTC",
	"2006-01-02 15:04:05 UTC",
	"2006-01-02 15:04:05",
}

// Point is one (calendar date, value) observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is a per-source (date, value) sequence extracted from one CSV file,
// already collapsed to one point per date.
type Series struct {
	Source string
	Points []Point
}

// ExtractSeries pulls a (date, value) series out of a frame using the
// column-name heuristics, truncates dates to calendar-day granularity, and
// collapses duplicate dates to the arithmetic mean of their values. Any
// missing column or unparseable cell fails the whole extraction; the caller
// skips the pair.
func ExtractSeries(f *tabular.Frame, source string) (*Series, error) {
	dateIdx := findColumn(f.Columns, DateColumns)
	if dateIdx < 0 {
		return nil, fmt.Errorf("no date column in %v: %w", f.Columns, domain.ErrMissingColumn)
	}
	valueIdx := findColumn(f.Columns, ValueColumns)
	if valueIdx < 0 {
		return nil, fmt.Errorf("no value column in %v: %w", f.Columns, domain.ErrMissingColumn)
	}

	grouped := make(map[time.Time][]float64)
	for i, row := range f.Rows {
		date, err := parseDate(row[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[valueIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse value %q: %w", i+1, row[valueIdx], err)
		}
		grouped[date] = append(grouped[date], value)
	}

	points := make([]Point, 0, len(grouped))
	for date, values := range grouped {
		points = append(points, Point{Date: date, Value: stat.Mean(values, nil)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return &Series{Source: source, Points: points}, nil
}

// findColumn returns the index of the first frame column whose lowercased
// name appears in the candidate list, or -1. File column order decides ties.
func findColumn(columns []string, candidates []string) int {
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c] = true
	}
	for i, col := range columns {
		if allowed[strings.ToLower(col)] {
			return i
		}
	}
	return -1
}

// parseDate parses a date cell to UTC calendar-day granularity. Time-of-day
// and zone information are discarded.
func parseDate(cell string) (time.Time, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date cell")
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return truncateDay(time.Unix(secs, 0).UTC()), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t.UTC()), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", cell)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
