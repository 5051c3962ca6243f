package validate

import (
	"math"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vaultlens/vaultlens/internal/tabular"
)

// MergedRow is one output row of the outer join: a date with up to two
// source values. An absent source is NaN.
type MergedRow struct {
	Date time.Time
	A    float64
	B    float64
}

// Merged is the outer join of two per-source series on date, one row per
// distinct date, ascending. Column names carry the source suffixes.
type Merged struct {
	SourceA string
	SourceB string
	Rows    []MergedRow
}

// MergeOuter outer-joins two series on date. Every date present in either
// input appears exactly once; the side missing a date contributes NaN.
func MergeOuter(a, b *Series) *Merged {
	byDateA := make(map[time.Time]float64, len(a.Points))
	for _, p := range a.Points {
		byDateA[p.Date] = p.Value
	}
	byDateB := make(map[time.Time]float64, len(b.Points))
	for _, p := range b.Points {
		byDateB[p.Date] = p.Value
	}

	dates := make(map[time.Time]bool, len(byDateA)+len(byDateB))
	for d := range byDateA {
		dates[d] = true
	}
	for d := range byDateB {
		dates[d] = true
	}

	rows := make([]MergedRow, 0, len(dates))
	for d := range dates {
		row := MergedRow{Date: d, A: math.NaN(), B: math.NaN()}
		if v, ok := byDateA[d]; ok {
			row.A = v
		}
		if v, ok := byDateB[d]; ok {
			row.B = v
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	return &Merged{SourceA: a.Source, SourceB: b.Source, Rows: rows}
}

// Report summarizes a merged comparison: coverage counts, the date range,
// and the Pearson correlation over rows where both sources are present.
// Correlation is only defined when at least two such rows exist.
type Report struct {
	TotalRows      int
	MinDate        time.Time
	MaxDate        time.Time
	CountA         int
	CountB         int
	CountBoth      int
	Correlation    float64
	HasCorrelation bool
}

// Summarize computes the coverage counts and, when at least two rows carry
// both values, the Pearson correlation between the two sources.
func (m *Merged) Summarize() Report {
	r := Report{TotalRows: len(m.Rows)}
	if len(m.Rows) > 0 {
		r.MinDate = m.Rows[0].Date
		r.MaxDate = m.Rows[len(m.Rows)-1].Date
	}

	var xs, ys []float64
	for _, row := range m.Rows {
		hasA := !math.IsNaN(row.A)
		hasB := !math.IsNaN(row.B)
		if hasA {
			r.CountA++
		}
		if hasB {
			r.CountB++
		}
		if hasA && hasB {
			r.CountBoth++
			xs = append(xs, row.A)
			ys = append(ys, row.B)
		}
	}

	if r.CountBoth >= 2 {
		r.Correlation = stat.Correlation(xs, ys, nil)
		r.HasCorrelation = true
	}
	return r
}

// Frame renders the merged table for CSV export. NaN cells become empty
// strings so spreadsheet tools read them as missing values.
func (m *Merged) Frame() *tabular.Frame {
	f := tabular.New("date", "tvl_"+m.SourceA, "tvl_"+m.SourceB)
	for _, row := range m.Rows {
		_ = f.Append(row.Date.Format("2006-01-02"), formatValue(row.A), formatValue(row.B))
	}
	return f
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
