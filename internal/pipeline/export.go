package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultlens/vaultlens/internal/domain"
	"github.com/vaultlens/vaultlens/internal/export"
	"github.com/vaultlens/vaultlens/internal/platform/dune"
	"github.com/vaultlens/vaultlens/internal/tabular"
)

// QueryJob describes one query export: which query to fetch and where its
// rows go. An empty Filename selects the timestamped default name.
type QueryJob struct {
	ID       int64
	Filename string
	Append   bool
}

// ExportSummary reports the outcome of one exporter run.
type ExportSummary struct {
	Exported int
	Failed   int
	Files    []string
}

// QueryExporter fetches result sets from the query API and writes them to
// CSV. Fresh controls the retrieval mode: cached results or a fresh
// execution with polling.
type QueryExporter struct {
	dune     *dune.Client
	exporter *export.CSVExporter
	fresh    bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewQueryExporter creates an exporter.
func NewQueryExporter(client *dune.Client, exporter *export.CSVExporter, fresh bool, logger *slog.Logger) *QueryExporter {
	return &QueryExporter{
		dune:     client,
		exporter: exporter,
		fresh:    fresh,
		logger:   logger.With(slog.String("component", "exporter")),
		now:      time.Now,
	}
}

// Run processes the jobs sequentially. A failed query (execution failure,
// empty result set, write error) is logged and counted; the batch continues
// with the next query. Only context cancellation stops the run early.
func (e *QueryExporter) Run(ctx context.Context, jobs []QueryJob) (ExportSummary, error) {
	var summary ExportSummary

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		e.logger.InfoContext(ctx, "processing query",
			slog.Int("index", i+1),
			slog.Int("total", len(jobs)),
			slog.Int64("query_id", job.ID),
			slog.Bool("fresh", e.fresh),
		)

		path, rows, err := e.exportOne(ctx, job)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			e.logger.ErrorContext(ctx, "query export failed",
				slog.Int64("query_id", job.ID),
				slog.String("error", err.Error()),
			)
			summary.Failed++
			continue
		}

		e.logger.InfoContext(ctx, "query results written",
			slog.Int64("query_id", job.ID),
			slog.String("path", path),
			slog.Int("rows", rows),
		)
		summary.Exported++
		summary.Files = append(summary.Files, path)
	}
	return summary, nil
}

// exportOne fetches one query's result set and writes it out, returning the
// written path and row count.
func (e *QueryExporter) exportOne(ctx context.Context, job QueryJob) (string, int, error) {
	rs, err := e.dune.Run(ctx, job.ID, e.fresh)
	if err != nil {
		return "", 0, err
	}
	if rs.Empty() {
		return "", 0, fmt.Errorf("query %d: %w", job.ID, domain.ErrEmptyResult)
	}

	var columns []string
	if len(rs.Columns) > 0 {
		columns = rs.Columns
	}
	frame := tabular.FromRecords(rs.Rows, columns)

	filename := job.Filename
	if filename == "" {
		filename = fmt.Sprintf("dune_query_%d_%s.csv", job.ID, e.now().Format("20060102_150405"))
	}

	var path string
	if job.Append {
		path, err = e.exporter.Append(frame, filename)
	} else {
		path, err = e.exporter.Save(frame, filename)
	}
	if err != nil {
		return "", 0, err
	}
	return path, len(frame.Rows), nil
}
