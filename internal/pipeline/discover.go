package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vaultlens/vaultlens/internal/domain"
	"github.com/vaultlens/vaultlens/internal/export"
	"github.com/vaultlens/vaultlens/internal/platform/defillama"
	"github.com/vaultlens/vaultlens/internal/tabular"
)

// DiscoverConfig holds the pool filter criteria. The string lists are
// substring matches against project, symbol, and chain respectively,
// case-insensitive. Only stablecoin pools above the TVL threshold pass.
type DiscoverConfig struct {
	Protocols    []string
	Assets       []string
	Chains       []string
	TVLThreshold float64
	Start        time.Time
	End          time.Time
}

// DiscoverSummary reports the outcome of one discovery sweep.
type DiscoverSummary struct {
	Matched      int
	Fetched      int
	Skipped      int
	ManifestPath string
	SummaryPaths []string
}

// PoolDiscovery sweeps the full pool listing, filters it down to the target
// pools, fetches each pool's history, and writes a manifest plus wide
// per-date summary tables for APY and TVL.
type PoolDiscovery struct {
	llama   *defillama.Client
	history *export.CSVExporter
	stats   *export.CSVExporter
	cfg     DiscoverConfig
	delay   time.Duration
	logger  *slog.Logger
}

// NewPoolDiscovery creates a discovery sweep. history receives the per-pool
// CSVs; stats receives the manifest and summary tables.
func NewPoolDiscovery(llama *defillama.Client, history, stats *export.CSVExporter, cfg DiscoverConfig, delay time.Duration, logger *slog.Logger) *PoolDiscovery {
	return &PoolDiscovery{
		llama:   llama,
		history: history,
		stats:   stats,
		cfg:     cfg,
		delay:   delay,
		logger:  logger.With(slog.String("component", "discovery")),
	}
}

// Run executes the sweep. Failure to list pools is fatal for the sweep;
// per-pool fetch failures are logged and skipped.
func (d *PoolDiscovery) Run(ctx context.Context) (DiscoverSummary, error) {
	var summary DiscoverSummary

	pools, err := d.llama.Pools(ctx)
	if err != nil {
		return summary, err
	}
	d.logger.InfoContext(ctx, "fetched pool listing", slog.Int("pools", len(pools)))

	matched := FilterPools(pools, d.cfg)
	summary.Matched = len(matched)
	d.logger.InfoContext(ctx, "filtered target pools",
		slog.Int("matched", len(matched)),
		slog.Float64("tvl_threshold", d.cfg.TVLThreshold),
	)

	manifestPath, err := d.stats.Save(manifestFrame(matched), fmt.Sprintf("pools_%d.csv", int64(d.cfg.TVLThreshold)))
	if err != nil {
		return summary, fmt.Errorf("pipeline: write pool manifest: %w", err)
	}
	summary.ManifestPath = manifestPath

	// Per-pool history, accumulated for the wide summary tables.
	apyByPool := make(map[string]map[string]float64)
	tvlByPool := make(map[string]map[string]float64)
	allDates := make(map[string]bool)
	var poolOrder []string

	for i, pool := range matched {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		points, err := d.llama.Chart(ctx, pool.PoolID)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, domain.ErrNoData) {
				level = slog.LevelInfo
			}
			d.logger.Log(ctx, level, "skipping pool",
				slog.String("pool", pool.Name()),
				slog.String("error", err.Error()),
			)
			summary.Skipped++
			continue
		}

		frame := HistoryFrame(points, d.cfg.Start, d.cfg.End)
		if frame.Empty() {
			d.logger.InfoContext(ctx, "no data points in date range, skipping pool",
				slog.String("pool", pool.Name()),
			)
			summary.Skipped++
			continue
		}

		if _, err := d.history.Save(frame, pool.Name()+".csv"); err != nil {
			d.logger.WarnContext(ctx, "skipping pool",
				slog.String("pool", pool.Name()),
				slog.String("error", err.Error()),
			)
			summary.Skipped++
			continue
		}
		summary.Fetched++

		apy := make(map[string]float64, len(frame.Rows))
		tvl := make(map[string]float64, len(frame.Rows))
		for _, row := range frame.Rows {
			date := row[0]
			allDates[date] = true
			tvl[date], _ = strconv.ParseFloat(row[1], 64)
			apy[date], _ = strconv.ParseFloat(row[2], 64)
		}
		apyByPool[pool.Name()] = apy
		tvlByPool[pool.Name()] = tvl
		poolOrder = append(poolOrder, pool.Name())

		if d.delay > 0 && i < len(matched)-1 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(d.delay):
			}
		}
	}

	for _, table := range []struct {
		filename string
		data     map[string]map[string]float64
	}{
		{"summary_apy.csv", apyByPool},
		{"summary_tvl.csv", tvlByPool},
	} {
		path, err := d.stats.Save(summaryFrame(table.data, poolOrder, allDates), table.filename)
		if err != nil {
			return summary, fmt.Errorf("pipeline: write %s: %w", table.filename, err)
		}
		summary.SummaryPaths = append(summary.SummaryPaths, path)
	}

	return summary, nil
}

// FilterPools applies the discovery criteria: stablecoin pools whose
// project, symbol, and chain each contain one of the configured substrings
// and whose TVL exceeds the threshold.
func FilterPools(pools []defillama.Pool, cfg DiscoverConfig) []defillama.Pool {
	var matched []defillama.Pool
	for _, p := range pools {
		if !p.Stablecoin {
			continue
		}
		if !containsAny(p.Project, cfg.Protocols) {
			continue
		}
		if !containsAny(p.Symbol, cfg.Assets) {
			continue
		}
		if !containsAny(p.Chain, cfg.Chains) {
			continue
		}
		if p.TVLUsd <= cfg.TVLThreshold {
			continue
		}
		matched = append(matched, p)
	}
	return matched
}

// containsAny reports whether s contains any of the needles,
// case-insensitive. An empty needle list matches everything.
func containsAny(s string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// manifestFrame renders the pool manifest table.
func manifestFrame(pools []defillama.Pool) *tabular.Frame {
	f := tabular.New("name", "pool_id", "market", "coin", "chain", "is_stablecoin", "address")
	for _, p := range pools {
		_ = f.Append(
			p.Name(),
			p.PoolID,
			p.Project,
			p.Symbol,
			p.Chain,
			strconv.FormatBool(p.Stablecoin),
			p.Address(),
		)
	}
	return f
}

// summaryFrame renders a wide table: one row per date, one column per pool,
// missing observations as 0.
func summaryFrame(byPool map[string]map[string]float64, poolOrder []string, dates map[string]bool) *tabular.Frame {
	sorted := make([]string, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	f := tabular.New(append([]string{"date"}, poolOrder...)...)
	for _, date := range sorted {
		row := make([]string, 0, len(poolOrder)+1)
		row = append(row, date)
		for _, pool := range poolOrder {
			row = append(row, tabular.FormatCell(byPool[pool][date]))
		}
		_ = f.Append(row...)
	}
	return f
}
