// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot settings such as
// the Telegram transport, search backend, quota and cooldown windows, result
// cache lifetime, storage drivers, server timeouts and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "pdf-library-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig holds Telegram transport settings.
type BotConfig struct {
	Token         string  // TELEGRAM_BOT_TOKEN
	APIBaseURL    string  // TELEGRAM_API_URL
	Mode          string  // webhook|polling
	WebhookURL    string  // public URL registered with setWebhook (optional)
	WebhookSecret string  // echoed by Telegram in X-Telegram-Bot-Api-Secret-Token
	PollTimeout   int     // long-poll timeout in seconds
	PollWorkers   int     // polling worker goroutines
	AdminIDs      []int64 // static admin set
	SuperUsers    map[int64]string
	StorageChatID int64 // copy of every delivered PDF (0 = off)
	LogChatID     int64 // audit line per delivery (0 = off)
	DeveloperURL  string
	DonateText    string

	DonatePhotoURL string // QR image sent with the donate text (optional)
}

// SearchConfig holds the external search backend settings.
type SearchConfig struct {
	Backend      string        // api|scrape
	APIURL       string        // SEARCH_API_URL (api backend)
	ScrapeURL    string        // SEARCH_SCRAPE_URL (scrape backend)
	NumResults   int           // results per list
	Retries      int           // attempts for transient failures
	RetryBackoff time.Duration // base backoff between attempts
	Timeout      time.Duration // per-request timeout
}

// LimitsConfig holds the per-user quota, cooldown and result cache settings.
type LimitsConfig struct {
	SearchLimit         int           // searches per window for regular users
	SearchResetWindow   time.Duration // quota window
	PDFCooldown         time.Duration // minimum delay between delivery clicks
	ResultTTL           time.Duration // cached result lifetime
	ResultSweepInterval time.Duration // background sweep period
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 90s (webhook handling includes search)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Storage
	StoreDriver string // sqlite|memory
	DBPath      string // SQLite path
	CacheDriver string // store|redis
	RedisURL    string // redis://host:6379/0

	// Rate limiting (webhook endpoint)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	Security SecurityConfig

	// Processed update log retention (webhook redelivery dedup)
	UpdateLogTTL time.Duration

	Bot    BotConfig
	Search SearchConfig
	Limits LimitsConfig

	// Observability
	OTEL OTELConfig
}

// defaultAdminID is the bot owner's Telegram user id.
const defaultAdminID = "1502110448"

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Storage
		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "pdfbot.db"),
		CacheDriver: strings.ToLower(getenv("CACHE_DRIVER", "store")),
		RedisURL:    getenv("REDIS_URL", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 30.0),
		RateBurst: getint("RATE_BURST", 60),

		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		UpdateLogTTL: getdur("UPDATE_LOG_TTL", 24*time.Hour),

		Bot: BotConfig{
			Token:         getenv("TELEGRAM_BOT_TOKEN", ""),
			APIBaseURL:    strings.TrimRight(getenv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
			Mode:          strings.ToLower(getenv("BOT_MODE", "webhook")),
			WebhookURL:    getenv("WEBHOOK_URL", ""),
			WebhookSecret: getenv("WEBHOOK_SECRET", ""),
			PollTimeout:   getint("POLL_TIMEOUT", 30),
			PollWorkers:   getint("POLL_WORKERS", 4),
			StorageChatID: getint64("STORAGE_GROUP_ID", 0),
			LogChatID:     getint64("LOG_CHANNEL_ID", 0),
			DeveloperURL:  getenv("DEVELOPER_URL", "https://t.me/redmoon0x"),
			DonateText:    getenv("DONATE_TEXT", "If you'd like to support this service, please consider a donation. Your support helps us keep improving. Thank you! 🙏"),

			DonatePhotoURL: getenv("DONATE_PHOTO_URL", ""),
		},

		Search: SearchConfig{
			Backend:      strings.ToLower(getenv("SEARCH_BACKEND", "api")),
			APIURL:       getenv("SEARCH_API_URL", ""),
			ScrapeURL:    getenv("SEARCH_SCRAPE_URL", "https://www.google.com/search"),
			NumResults:   getint("SEARCH_NUM_RESULTS", 10),
			Retries:      getint("SEARCH_RETRIES", 3),
			RetryBackoff: getdur("SEARCH_RETRY_BACKOFF", time.Second),
			Timeout:      getdur("SEARCH_TIMEOUT", 20*time.Second),
		},

		Limits: LimitsConfig{
			SearchLimit:         getint("SEARCH_LIMIT", 2),
			SearchResetWindow:   getdur("SEARCH_RESET_WINDOW", 2*time.Hour),
			PDFCooldown:         getdur("PDF_COOLDOWN", 60*time.Second),
			ResultTTL:           getdur("RESULT_TTL", 6*time.Hour),
			ResultSweepInterval: getdur("RESULT_SWEEP_INTERVAL", 10*time.Minute),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "pdf-library-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	admins, err := parseIDs(getenv("ADMIN_IDS", defaultAdminID))
	if err != nil {
		return cfg, errors.New("ADMIN_IDS must be a comma-separated list of integers")
	}
	cfg.Bot.AdminIDs = admins

	supers, err := parseNamedIDs(getenv("SUPER_USERS", ""))
	if err != nil {
		return cfg, errors.New("SUPER_USERS must look like 123:Name,456:Other")
	}
	cfg.Bot.SuperUsers = supers

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.StoreDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "memory":
	default:
		return cfg, errors.New("STORE_DRIVER must be one of: sqlite, memory")
	}
	switch cfg.CacheDriver {
	case "store":
	case "redis":
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL is required when CACHE_DRIVER=redis")
		}
	default:
		return cfg, errors.New("CACHE_DRIVER must be one of: store, redis")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.UpdateLogTTL <= 0 {
		return cfg, errors.New("UPDATE_LOG_TTL must be > 0")
	}
	switch cfg.Bot.Mode {
	case "webhook", "polling":
	default:
		return cfg, errors.New("BOT_MODE must be one of: webhook, polling")
	}
	if cfg.Bot.PollTimeout < 0 || cfg.Bot.PollTimeout > 60 {
		return cfg, errors.New("POLL_TIMEOUT must be between 0 and 60")
	}
	if cfg.Bot.PollWorkers < 1 {
		return cfg, errors.New("POLL_WORKERS must be >= 1")
	}
	if len(cfg.Bot.AdminIDs) == 0 {
		return cfg, errors.New("ADMIN_IDS must name at least one admin")
	}
	switch cfg.Search.Backend {
	case "api":
		if strings.TrimSpace(cfg.Search.APIURL) == "" {
			return cfg, errors.New("SEARCH_API_URL is required when SEARCH_BACKEND=api")
		}
	case "scrape":
		if strings.TrimSpace(cfg.Search.ScrapeURL) == "" {
			return cfg, errors.New("SEARCH_SCRAPE_URL must not be empty")
		}
	default:
		return cfg, errors.New("SEARCH_BACKEND must be one of: api, scrape")
	}
	if cfg.Search.NumResults < 1 {
		return cfg, errors.New("SEARCH_NUM_RESULTS must be >= 1")
	}
	if cfg.Search.Retries < 1 {
		return cfg, errors.New("SEARCH_RETRIES must be >= 1")
	}
	if cfg.Search.RetryBackoff < 0 || cfg.Search.Timeout <= 0 {
		return cfg, errors.New("SEARCH_RETRY_BACKOFF must be >= 0 and SEARCH_TIMEOUT > 0")
	}
	if cfg.Limits.SearchLimit < 1 {
		return cfg, errors.New("SEARCH_LIMIT must be >= 1")
	}
	if cfg.Limits.SearchResetWindow <= 0 || cfg.Limits.PDFCooldown <= 0 {
		return cfg, errors.New("SEARCH_RESET_WINDOW and PDF_COOLDOWN must be positive durations")
	}
	if cfg.Limits.ResultTTL <= 0 || cfg.Limits.ResultSweepInterval <= 0 {
		return cfg, errors.New("RESULT_TTL and RESULT_SWEEP_INTERVAL must be positive durations")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseIDs parses "1,2,3" into int64 ids, skipping empty items.
func parseIDs(s string) ([]int64, error) {
	parts := splitCSV(s)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// parseNamedIDs parses "123:Alice,456:Bob". The name part is optional.
func parseNamedIDs(s string) (map[int64]string, error) {
	out := make(map[int64]string)
	for _, p := range splitCSV(s) {
		idPart, name, _ := strings.Cut(p, ":")
		id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil {
			return nil, err
		}
		out[id] = strings.TrimSpace(name)
	}
	return out, nil
}
