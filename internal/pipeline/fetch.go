// Package pipeline contains the three batch pipelines: the historical-series
// fetcher, the pool discovery sweep, and the query exporter. Each processes
// its items strictly sequentially; a failed item is logged and skipped and
// never aborts the batch.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vaultlens/vaultlens/internal/domain"
	"github.com/vaultlens/vaultlens/internal/export"
	"github.com/vaultlens/vaultlens/internal/platform/defillama"
	"github.com/vaultlens/vaultlens/internal/tabular"
)

// historyColumns is the header of the per-vault history CSVs.
var historyColumns = []string{"date", "tvl", "apy", "apy_base", "apy_reward"}

// FetchSummary reports the outcome of one fetcher run.
type FetchSummary struct {
	Fetched int
	Skipped int
	Files   []string
}

// HistoryFetcher downloads the historical APY/TVL chart for each configured
// vault and writes one CSV per vault.
type HistoryFetcher struct {
	llama    *defillama.Client
	exporter *export.CSVExporter
	delay    time.Duration
	start    time.Time
	end      time.Time
	logger   *slog.Logger
}

// NewHistoryFetcher creates a fetcher. delay is the politeness pause between
// vault fetches; zero start/end disable date-range filtering on that side.
func NewHistoryFetcher(llama *defillama.Client, exporter *export.CSVExporter, delay time.Duration, start, end time.Time, logger *slog.Logger) *HistoryFetcher {
	return &HistoryFetcher{
		llama:    llama,
		exporter: exporter,
		delay:    delay,
		start:    start,
		end:      end,
		logger:   logger.With(slog.String("component", "fetcher")),
	}
}

// Run processes the vault list sequentially. Vaults without data and vaults
// whose fetch fails are skipped; the run only stops early when the context
// is cancelled.
func (f *HistoryFetcher) Run(ctx context.Context, vaults []domain.Vault) (FetchSummary, error) {
	var summary FetchSummary

	for i, vault := range vaults {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		f.logger.InfoContext(ctx, "fetching vault history",
			slog.Int("index", i+1),
			slog.Int("total", len(vaults)),
			slog.String("pool_id", vault.PoolID),
			slog.String("symbol", vault.Symbol),
		)

		points, err := f.llama.Chart(ctx, vault.PoolID)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, domain.ErrNoData) {
				level = slog.LevelInfo
			}
			f.logger.Log(ctx, level, "skipping vault",
				slog.String("pool_id", vault.PoolID),
				slog.String("error", err.Error()),
			)
			summary.Skipped++
			continue
		}

		frame := HistoryFrame(points, f.start, f.end)
		if frame.Empty() {
			f.logger.InfoContext(ctx, "no data points in date range, skipping vault",
				slog.String("pool_id", vault.PoolID),
			)
			summary.Skipped++
			continue
		}

		path, err := f.exporter.Save(frame, vault.Filename())
		if err != nil {
			f.logger.WarnContext(ctx, "skipping vault",
				slog.String("pool_id", vault.PoolID),
				slog.String("error", err.Error()),
			)
			summary.Skipped++
			continue
		}

		f.logger.InfoContext(ctx, "vault history written",
			slog.String("path", path),
			slog.Int("rows", len(frame.Rows)),
		)
		summary.Fetched++
		summary.Files = append(summary.Files, path)

		if f.delay > 0 && i < len(vaults)-1 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(f.delay):
			}
		}
	}
	return summary, nil
}

// HistoryFrame converts chart points into the history CSV layout, dropping
// points with unparseable timestamps and, when start/end are set, points
// outside the inclusive date range.
func HistoryFrame(points []defillama.ChartPoint, start, end time.Time) *tabular.Frame {
	frame := tabular.New(historyColumns...)
	for _, p := range points {
		if p.Timestamp.IsZero() {
			continue
		}
		if !start.IsZero() && p.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && p.Timestamp.After(end) {
			continue
		}
		_ = frame.Append(
			p.Timestamp.Format("2006-01-02"),
			tabular.FormatCell(p.TVLUsd),
			tabular.FormatCell(p.APYValue()),
			tabular.FormatCell(p.APYBaseValue()),
			tabular.FormatCell(p.APYRewardValue()),
		)
	}
	return frame
}
