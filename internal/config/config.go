// Package config defines the top-level configuration for vaultlens and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by VAULTLENS_* environment
// variables.
type Config struct {
	DefiLlama  DefiLlamaConfig  `toml:"defillama"`
	Dune       DuneConfig       `toml:"dune"`
	Discover   DiscoverConfig   `toml:"discover"`
	Validation ValidationConfig `toml:"validation"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// DefiLlamaConfig holds the yields API endpoint and the historical-series
// fetcher parameters.
type DefiLlamaConfig struct {
	BaseURL      string   `toml:"base_url"`
	VaultsFile   string   `toml:"vaults_file"`
	OutputDir    string   `toml:"output_dir"`
	RequestDelay duration `toml:"request_delay"`
	// StartDate and EndDate bound the exported series, inclusive,
	// "YYYY-MM-DD". Empty disables that bound.
	StartDate string `toml:"start_date"`
	EndDate   string `toml:"end_date"`
}

// DateRange parses the configured date bounds. Zero times mean unbounded.
func (c DefiLlamaConfig) DateRange() (start, end time.Time, err error) {
	if c.StartDate != "" {
		start, err = time.Parse("2006-01-02", c.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("defillama: parse start_date %q: %w", c.StartDate, err)
		}
	}
	if c.EndDate != "" {
		end, err = time.Parse("2006-01-02", c.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("defillama: parse end_date %q: %w", c.EndDate, err)
		}
	}
	return start, end, nil
}

// DuneConfig holds the query API credentials and the export jobs.
type DuneConfig struct {
	APIKey       string        `toml:"api_key"`
	BaseURL      string        `toml:"base_url"`
	OutputDir    string        `toml:"output_dir"`
	PollInterval duration      `toml:"poll_interval"`
	// MaxWait bounds the fresh-execution poll loop. Zero means wait until
	// the execution finishes (the wait stays context-cancellable).
	MaxWait      duration      `toml:"max_wait"`
	ExecuteFresh bool          `toml:"execute_fresh"`
	Queries      []QueryConfig `toml:"queries"`
}

// QueryConfig describes one query export job. An empty filename selects the
// timestamped default name.
type QueryConfig struct {
	ID       int64  `toml:"id"`
	Filename string `toml:"filename"`
	Append   bool   `toml:"append"`
}

// DiscoverConfig holds the pool discovery filter criteria.
type DiscoverConfig struct {
	Protocols    []string `toml:"protocols"`
	Assets       []string `toml:"assets"`
	Chains       []string `toml:"chains"`
	TVLThreshold float64  `toml:"tvl_threshold"`
	StatsDir     string   `toml:"stats_dir"`
}

// ValidationConfig holds the cross-source validator output location.
type ValidationConfig struct {
	OutputDir string `toml:"output_dir"`
}

// S3Config holds S3-compatible object storage parameters for the archive
// step. Disabled unless Enabled is set.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "500ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "500ms".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. The
// discovery filter defaults mirror the stablecoin vault universe the tool
// was built to track.
func Defaults() Config {
	return Config{
		DefiLlama: DefiLlamaConfig{
			BaseURL:      "https://yields.llama.fi",
			VaultsFile:   "morpho_vaults.json",
			OutputDir:    "data/defillama",
			RequestDelay: duration{500 * time.Millisecond},
		},
		Dune: DuneConfig{
			BaseURL:      "https://api.dune.com/api/v1",
			OutputDir:    "data/dune",
			PollInterval: duration{5 * time.Second},
			MaxWait:      duration{0},
			ExecuteFresh: false,
		},
		Discover: DiscoverConfig{
			Protocols:    []string{"aave-v3", "fluid", "morpho", "euler", "kamino", "ethena", "sky.money", "ondo", "elixir", "openeden"},
			Assets:       []string{"usdc", "usdt", "susde", "dai", "usdt0"},
			Chains:       []string{"ethereum", "base", "arbitrum", "avalanche", "bnb", "polygon"},
			TVLThreshold: 1_000_000,
			StatsDir:     "statistics",
		},
		Validation: ValidationConfig{
			OutputDir: "data/validation",
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "vaultlens-data",
			UseSSL:         false,
			ForcePathStyle: true,
			Prefix:         "exports",
		},
		Notify: NotifyConfig{
			Events: []string{"run_completed", "validation_completed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"fetch":    true,
	"discover": true,
	"export":   true,
	"validate": true,
	"archive":  true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsDune reports whether the mode calls the query API and therefore
// requires an API key.
func (c *Config) NeedsDune() bool {
	switch strings.ToLower(c.Mode) {
	case "export", "full":
		return true
	default:
		return false
	}
}

// NeedsVaults reports whether the mode reads the static vault list.
func (c *Config) NeedsVaults() bool {
	switch strings.ToLower(c.Mode) {
	case "fetch", "full":
		return true
	default:
		return false
	}
}

// NeedsS3 reports whether the mode uploads to object storage.
func (c *Config) NeedsS3() bool {
	mode := strings.ToLower(c.Mode)
	return mode == "archive" || (mode == "full" && c.S3.Enabled)
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. Validation failures are
// process-level fatal: no item processing starts on a bad config.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: fetch, discover, export, validate, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.DefiLlama.OutputDir == "" {
		errs = append(errs, "defillama: output_dir must not be empty")
	}
	if c.NeedsVaults() && c.DefiLlama.VaultsFile == "" {
		errs = append(errs, "defillama: vaults_file is required for mode "+c.Mode)
	}
	if _, _, err := c.DefiLlama.DateRange(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.NeedsDune() {
		if c.Dune.APIKey == "" {
			errs = append(errs, "dune: api_key is required for mode "+c.Mode+" (set VAULTLENS_DUNE_API_KEY)")
		}
		if len(c.Dune.Queries) == 0 {
			errs = append(errs, "dune: at least one [[dune.queries]] entry is required for mode "+c.Mode)
		}
	}
	for i, q := range c.Dune.Queries {
		if q.ID <= 0 {
			errs = append(errs, fmt.Sprintf("dune: queries[%d]: id must be positive", i))
		}
	}
	if c.Dune.OutputDir == "" {
		errs = append(errs, "dune: output_dir must not be empty")
	}
	if c.Dune.PollInterval.Duration <= 0 {
		errs = append(errs, "dune: poll_interval must be positive")
	}

	if c.Validation.OutputDir == "" {
		errs = append(errs, "validation: output_dir must not be empty")
	}
	if c.Discover.TVLThreshold < 0 {
		errs = append(errs, "discover: tvl_threshold must not be negative")
	}

	if c.NeedsS3() || c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archiving is enabled")
		}
	}
	if strings.ToLower(c.Mode) == "archive" && !c.S3.Enabled {
		errs = append(errs, "s3: enabled must be true for archive mode")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
