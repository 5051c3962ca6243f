// Package validate cross-checks the TVL series exported by the two source
// pipelines. Files are paired by identical name across the DefiLlama and
// Dune directories, outer-joined on date, summarized, and written to the
// validation output directory. A failure in one pair never aborts the run.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vaultlens/vaultlens/internal/export"
	"github.com/vaultlens/vaultlens/internal/tabular"
)

// SourceA and SourceB are the column suffixes for the two providers.
const (
	SourceA = "defillama"
	SourceB = "dune"
)

// Pair is a matched (provider-A file, provider-B file) association, keyed by
// the shared filename. Recomputed fresh on every run.
type Pair struct {
	Filename string
	PathA    string
	PathB    string
}

// PairResult is the outcome of validating one pair.
type PairResult struct {
	Filename   string
	OutputPath string
	Report     Report
}

// Validator pairs exported CSV files across the two source directories and
// produces merged comparison files.
type Validator struct {
	dirA     string
	dirB     string
	exporter *export.CSVExporter
	logger   *slog.Logger
}

// NewValidator creates a Validator reading from dirA (DefiLlama exports) and
// dirB (Dune exports) and writing merged files through the given exporter.
func NewValidator(dirA, dirB string, exporter *export.CSVExporter, logger *slog.Logger) *Validator {
	return &Validator{
		dirA:     dirA,
		dirB:     dirB,
		exporter: exporter,
		logger:   logger.With(slog.String("component", "validator")),
	}
}

// DiscoverPairs lists the CSV files in both source directories and returns
// the pairs whose filenames match exactly, sorted by filename. Either
// directory missing is an error: there is nothing to validate.
func (v *Validator) DiscoverPairs() ([]Pair, error) {
	filesA, err := listCSV(v.dirA)
	if err != nil {
		return nil, fmt.Errorf("validate: list %s: %w", v.dirA, err)
	}
	filesB, err := listCSV(v.dirB)
	if err != nil {
		return nil, fmt.Errorf("validate: list %s: %w", v.dirB, err)
	}

	inB := make(map[string]bool, len(filesB))
	for _, f := range filesB {
		inB[f] = true
	}

	var pairs []Pair
	for _, f := range filesA {
		if inB[f] {
			pairs = append(pairs, Pair{
				Filename: f,
				PathA:    filepath.Join(v.dirA, f),
				PathB:    filepath.Join(v.dirB, f),
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Filename < pairs[j].Filename })
	return pairs, nil
}

// Run validates every matched pair. Pairs that fail extraction or merging
// are logged and skipped; the returned slice holds one result per pair that
// produced a validation file.
func (v *Validator) Run(ctx context.Context) ([]PairResult, error) {
	pairs, err := v.DiscoverPairs()
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		v.logger.InfoContext(ctx, "no matching files between source directories",
			slog.String("dir_a", v.dirA),
			slog.String("dir_b", v.dirB),
		)
		return nil, nil
	}

	v.logger.InfoContext(ctx, "validating matched pairs", slog.Int("pairs", len(pairs)))

	var results []PairResult
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := v.validatePair(ctx, pair)
		if err != nil {
			v.logger.WarnContext(ctx, "skipping pair",
				slog.String("filename", pair.Filename),
				slog.String("error", err.Error()),
			)
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// validatePair runs the extract → aggregate → merge → report → persist steps
// for one pair. Any step failing fails the pair.
func (v *Validator) validatePair(ctx context.Context, pair Pair) (*PairResult, error) {
	seriesA, err := v.extractFile(pair.PathA, SourceA)
	if err != nil {
		return nil, err
	}
	seriesB, err := v.extractFile(pair.PathB, SourceB)
	if err != nil {
		return nil, err
	}

	merged := MergeOuter(seriesA, seriesB)
	report := merged.Summarize()

	path, err := v.exporter.Save(merged.Frame(), "validation_"+pair.Filename)
	if err != nil {
		return nil, err
	}

	attrs := []any{
		slog.String("filename", pair.Filename),
		slog.String("output", path),
		slog.Int("rows", report.TotalRows),
		slog.String("date_min", report.MinDate.Format("2006-01-02")),
		slog.String("date_max", report.MaxDate.Format("2006-01-02")),
		slog.Int("with_"+SourceA, report.CountA),
		slog.Int("with_"+SourceB, report.CountB),
		slog.Int("with_both", report.CountBoth),
	}
	if report.HasCorrelation {
		attrs = append(attrs, slog.Float64("correlation", report.Correlation))
	}
	v.logger.InfoContext(ctx, "validation file written", attrs...)

	return &PairResult{Filename: pair.Filename, OutputPath: path, Report: report}, nil
}

func (v *Validator) extractFile(path, source string) (*Series, error) {
	frame, err := tabular.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	series, err := ExtractSeries(frame, source)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return series, nil
}

func listCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
