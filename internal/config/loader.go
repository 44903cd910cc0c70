package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STOCKCORE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STOCKCORE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "STOCKCORE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "STOCKCORE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "STOCKCORE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "STOCKCORE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "STOCKCORE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STOCKCORE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "STOCKCORE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STOCKCORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STOCKCORE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STOCKCORE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "STOCKCORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STOCKCORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STOCKCORE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STOCKCORE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STOCKCORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STOCKCORE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "STOCKCORE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STOCKCORE_S3_REGION")
	setStr(&cfg.S3.Bucket, "STOCKCORE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STOCKCORE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STOCKCORE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STOCKCORE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STOCKCORE_S3_FORCE_PATH_STYLE")

	// ── Market ──
	setStringSlice(&cfg.Market.Symbols, "STOCKCORE_MARKET_SYMBOLS")
	setInt64(&cfg.Market.CandleIntervalSeconds, "STOCKCORE_MARKET_CANDLE_INTERVAL_SECONDS")
	setInt(&cfg.Market.CandleKeep, "STOCKCORE_MARKET_CANDLE_KEEP")
	setInt(&cfg.Market.TradeRingSize, "STOCKCORE_MARKET_TRADE_RING_SIZE")
	setFloat64(&cfg.Market.DefaultPrice, "STOCKCORE_MARKET_DEFAULT_PRICE")
	setInt(&cfg.Market.DepthLevels, "STOCKCORE_MARKET_DEPTH_LEVELS")
	setInt(&cfg.Market.JournalBuffer, "STOCKCORE_MARKET_JOURNAL_BUFFER")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "STOCKCORE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "STOCKCORE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "STOCKCORE_ARCHIVE_CRON")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "STOCKCORE_LOG_LEVEL")
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

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
