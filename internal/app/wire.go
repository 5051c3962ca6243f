package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/vaultlens/vaultlens/internal/blob/s3"
	"github.com/vaultlens/vaultlens/internal/config"
	"github.com/vaultlens/vaultlens/internal/export"
	"github.com/vaultlens/vaultlens/internal/notify"
	"github.com/vaultlens/vaultlens/internal/platform/defillama"
	"github.com/vaultlens/vaultlens/internal/platform/dune"
	"github.com/vaultlens/vaultlens/internal/validate"
)

// Dependencies bundles everything the application modes need to operate.
// Constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Llama *defillama.Client
	Dune  *dune.Client

	LlamaExporter *export.CSVExporter
	DuneExporter  *export.CSVExporter
	StatsExporter *export.CSVExporter

	Validator *validate.Validator
	Archiver  *s3blob.Archiver
	Notifier  *notify.Notifier
}

// Wire constructs the concrete dependencies for the configured mode and
// returns them with a cleanup function to call on shutdown. Clients that
// the mode does not need are left nil.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Llama:         defillama.NewClient(cfg.DefiLlama.BaseURL),
		LlamaExporter: export.NewCSVExporter(cfg.DefiLlama.OutputDir),
		DuneExporter:  export.NewCSVExporter(cfg.Dune.OutputDir),
		StatsExporter: export.NewCSVExporter(cfg.Discover.StatsDir),
	}

	if cfg.NeedsDune() {
		deps.Dune = dune.NewClient(
			cfg.Dune.BaseURL,
			cfg.Dune.APIKey,
			cfg.Dune.PollInterval.Duration,
			cfg.Dune.MaxWait.Duration,
		)
	}

	deps.Validator = validate.NewValidator(
		cfg.DefiLlama.OutputDir,
		cfg.Dune.OutputDir,
		export.NewCSVExporter(cfg.Validation.OutputDir),
		logger,
	)

	if cfg.NeedsS3() {
		client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(client), cfg.S3.Prefix, logger)
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
