package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VAULTLENS_* environment variable overrides, and
// returns the final Config. A missing config file is not an error: the tool
// can run on defaults plus environment variables alone. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VAULTLENS_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── DefiLlama ──
	setStr(&cfg.DefiLlama.BaseURL, "VAULTLENS_DEFILLAMA_BASE_URL")
	setStr(&cfg.DefiLlama.VaultsFile, "VAULTLENS_DEFILLAMA_VAULTS_FILE")
	setStr(&cfg.DefiLlama.OutputDir, "VAULTLENS_DEFILLAMA_OUTPUT_DIR")
	setDuration(&cfg.DefiLlama.RequestDelay, "VAULTLENS_DEFILLAMA_REQUEST_DELAY")
	setStr(&cfg.DefiLlama.StartDate, "VAULTLENS_DEFILLAMA_START_DATE")
	setStr(&cfg.DefiLlama.EndDate, "VAULTLENS_DEFILLAMA_END_DATE")

	// ── Dune ──
	setStr(&cfg.Dune.APIKey, "VAULTLENS_DUNE_API_KEY")
	setStr(&cfg.Dune.APIKey, "DUNE_API_KEY") // compatibility alias
	setStr(&cfg.Dune.BaseURL, "VAULTLENS_DUNE_BASE_URL")
	setStr(&cfg.Dune.OutputDir, "VAULTLENS_DUNE_OUTPUT_DIR")
	setDuration(&cfg.Dune.PollInterval, "VAULTLENS_DUNE_POLL_INTERVAL")
	setDuration(&cfg.Dune.MaxWait, "VAULTLENS_DUNE_MAX_WAIT")
	setBool(&cfg.Dune.ExecuteFresh, "VAULTLENS_DUNE_EXECUTE_FRESH")

	// ── Discover ──
	setStringSlice(&cfg.Discover.Protocols, "VAULTLENS_DISCOVER_PROTOCOLS")
	setStringSlice(&cfg.Discover.Assets, "VAULTLENS_DISCOVER_ASSETS")
	setStringSlice(&cfg.Discover.Chains, "VAULTLENS_DISCOVER_CHAINS")
	setFloat64(&cfg.Discover.TVLThreshold, "VAULTLENS_DISCOVER_TVL_THRESHOLD")
	setStr(&cfg.Discover.StatsDir, "VAULTLENS_DISCOVER_STATS_DIR")

	// ── Validation ──
	setStr(&cfg.Validation.OutputDir, "VAULTLENS_VALIDATION_OUTPUT_DIR")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VAULTLENS_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VAULTLENS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VAULTLENS_S3_REGION")
	setStr(&cfg.S3.Bucket, "VAULTLENS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VAULTLENS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VAULTLENS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VAULTLENS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VAULTLENS_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "VAULTLENS_S3_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VAULTLENS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VAULTLENS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VAULTLENS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VAULTLENS_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VAULTLENS_MODE")
	setStr(&cfg.LogLevel, "VAULTLENS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
