package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vaultlens/vaultlens/internal/domain"
	"github.com/vaultlens/vaultlens/internal/notify"
	"github.com/vaultlens/vaultlens/internal/pipeline"
	"github.com/vaultlens/vaultlens/internal/validate"
)

// FetchMode runs the historical-series fetcher over the static vault list.
func (a *App) FetchMode(ctx context.Context, deps *Dependencies) error {
	summary, err := a.runFetch(ctx, deps)
	if err != nil {
		return err
	}
	a.notifyRun(ctx, deps, "Vault history fetch complete",
		fmt.Sprintf("fetched: %d\nskipped: %d", summary.Fetched, summary.Skipped))
	return nil
}

// DiscoverMode sweeps the full pool listing and exports the matching pools'
// histories plus the manifest and summary tables.
func (a *App) DiscoverMode(ctx context.Context, deps *Dependencies) error {
	discovery := pipeline.NewPoolDiscovery(
		deps.Llama,
		deps.LlamaExporter,
		deps.StatsExporter,
		a.discoverConfig(),
		a.cfg.DefiLlama.RequestDelay.Duration,
		a.logger,
	)
	summary, err := discovery.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: discover: %w", err)
	}
	a.notifyRun(ctx, deps, "Pool discovery complete",
		fmt.Sprintf("matched: %d\nfetched: %d\nskipped: %d", summary.Matched, summary.Fetched, summary.Skipped))
	return nil
}

// ExportMode runs the query-export pipeline over the configured queries.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	summary, err := a.runExport(ctx, deps)
	if err != nil {
		return err
	}
	a.notifyRun(ctx, deps, "Query export complete",
		fmt.Sprintf("exported: %d\nfailed: %d", summary.Exported, summary.Failed))
	return nil
}

// ValidateMode cross-validates the two export directories.
func (a *App) ValidateMode(ctx context.Context, deps *Dependencies) error {
	_, err := a.runValidate(ctx, deps)
	return err
}

// ArchiveMode uploads the three data directories to object storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	uploaded, err := deps.Archiver.ArchiveDirs(ctx, a.dataDirs())
	if err != nil {
		return fmt.Errorf("app: archive: %w", err)
	}
	a.notifyRun(ctx, deps, "Archive complete", fmt.Sprintf("files uploaded: %d", uploaded))
	return nil
}

// FullMode runs fetch, export, and validate in sequence, then archives when
// object storage is configured. The stages share nothing at run time beyond
// the on-disk file naming, so a stage's per-item failures never block the
// next stage.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	fetchSummary, err := a.runFetch(ctx, deps)
	if err != nil {
		return err
	}
	exportSummary, err := a.runExport(ctx, deps)
	if err != nil {
		return err
	}
	results, err := a.runValidate(ctx, deps)
	if err != nil {
		return err
	}

	if deps.Archiver != nil {
		if _, err := deps.Archiver.ArchiveDirs(ctx, a.dataDirs()); err != nil {
			return fmt.Errorf("app: archive: %w", err)
		}
	}

	a.notifyRun(ctx, deps, "Full run complete", fmt.Sprintf(
		"vaults fetched: %d (skipped %d)\nqueries exported: %d (failed %d)\npairs validated: %d",
		fetchSummary.Fetched, fetchSummary.Skipped,
		exportSummary.Exported, exportSummary.Failed,
		len(results),
	))
	return nil
}

// ---------------------------------------------------------------------------
// Shared stage runners
// ---------------------------------------------------------------------------

func (a *App) runFetch(ctx context.Context, deps *Dependencies) (pipeline.FetchSummary, error) {
	vaults, err := domain.LoadVaults(a.cfg.DefiLlama.VaultsFile)
	if err != nil {
		return pipeline.FetchSummary{}, fmt.Errorf("app: fetch: %w", err)
	}
	a.logger.InfoContext(ctx, "loaded vault list",
		slog.String("path", a.cfg.DefiLlama.VaultsFile),
		slog.Int("vaults", len(vaults)),
	)

	start, end, err := a.cfg.DefiLlama.DateRange()
	if err != nil {
		return pipeline.FetchSummary{}, fmt.Errorf("app: fetch: %w", err)
	}

	fetcher := pipeline.NewHistoryFetcher(
		deps.Llama,
		deps.LlamaExporter,
		a.cfg.DefiLlama.RequestDelay.Duration,
		start, end,
		a.logger,
	)
	summary, err := fetcher.Run(ctx, vaults)
	if err != nil {
		return summary, fmt.Errorf("app: fetch: %w", err)
	}
	return summary, nil
}

func (a *App) runExport(ctx context.Context, deps *Dependencies) (pipeline.ExportSummary, error) {
	jobs := make([]pipeline.QueryJob, 0, len(a.cfg.Dune.Queries))
	for _, q := range a.cfg.Dune.Queries {
		jobs = append(jobs, pipeline.QueryJob{ID: q.ID, Filename: q.Filename, Append: q.Append})
	}

	exporter := pipeline.NewQueryExporter(deps.Dune, deps.DuneExporter, a.cfg.Dune.ExecuteFresh, a.logger)
	summary, err := exporter.Run(ctx, jobs)
	if err != nil {
		return summary, fmt.Errorf("app: export: %w", err)
	}
	return summary, nil
}

func (a *App) runValidate(ctx context.Context, deps *Dependencies) ([]validate.PairResult, error) {
	results, err := deps.Validator.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: validate: %w", err)
	}

	if len(results) > 0 && deps.Notifier.Enabled() {
		var lines []string
		for _, r := range results {
			if r.Report.HasCorrelation {
				lines = append(lines, fmt.Sprintf("%s: corr %.4f over %d rows", r.Filename, r.Report.Correlation, r.Report.CountBoth))
			} else {
				lines = append(lines, fmt.Sprintf("%s: insufficient overlap (%d rows)", r.Filename, r.Report.CountBoth))
			}
		}
		_ = deps.Notifier.Notify(ctx, notify.EventValidationCompleted,
			"TVL validation complete", strings.Join(lines, "\n"))
	}
	return results, nil
}

func (a *App) notifyRun(ctx context.Context, deps *Dependencies, title, message string) {
	_ = deps.Notifier.Notify(ctx, notify.EventRunCompleted, title, message)
}

func (a *App) dataDirs() []string {
	return []string{
		a.cfg.DefiLlama.OutputDir,
		a.cfg.Dune.OutputDir,
		a.cfg.Validation.OutputDir,
	}
}

func (a *App) discoverConfig() pipeline.DiscoverConfig {
	start, end, _ := a.cfg.DefiLlama.DateRange()
	return pipeline.DiscoverConfig{
		Protocols:    a.cfg.Discover.Protocols,
		Assets:       a.cfg.Discover.Assets,
		Chains:       a.cfg.Discover.Chains,
		TVLThreshold: a.cfg.Discover.TVLThreshold,
		Start:        start,
		End:          end,
	}
}
