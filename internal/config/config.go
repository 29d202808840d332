// Package config loads the looks entitlement service settings from the
// environment. Every key has a default, so an empty environment yields a
// runnable sqlite development setup; Validate reports every bad key at once.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Port              string        // PORT, just the number
	ReadTimeout       time.Duration // READ_TIMEOUT
	ReadHeaderTimeout time.Duration // READ_HEADER_TIMEOUT
	WriteTimeout      time.Duration // WRITE_TIMEOUT
	IdleTimeout       time.Duration // IDLE_TIMEOUT
	MaxHeaderBytes    int           // MAX_HEADER_BYTES
	GinMode           string        // GIN_MODE debug|release|test
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string // LOG_LEVEL debug|info|warn|error|fatal|panic
	Pretty bool   // LOG_PRETTY console output for local runs
}

// StorageConfig picks the gorm dialect holding entitlements and ledgers.
type StorageConfig struct {
	Driver string // DB_DRIVER sqlite|postgres
	Path   string // DB_PATH, sqlite file
	DSN    string // DB_DSN, postgres connection string
}

// Target returns the driver and the DSN to open for it.
func (s StorageConfig) Target() (driver, dsn string) {
	if s.Driver == "postgres" {
		return s.Driver, s.DSN
	}
	return s.Driver, s.Path
}

// RateConfig is the per-user token bucket on the public API.
type RateConfig struct {
	RPS   float64 // RATE_RPS tokens per second, 0 disables refill
	Burst int     // RATE_BURST bucket size
}

// CORSConfig lists browser origins allowed to call the API. Empty allows all.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS comma separated
}

// SecurityConfig controls the HSTS header.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// BillingConfig reaches the billing platform's subscriber API.
type BillingConfig struct {
	BaseURL       string        // BILLING_API_BASE_URL
	APIKey        string        // BILLING_API_KEY, empty runs without a billing client
	Timeout       time.Duration // BILLING_TIMEOUT
	EntitlementID string        // BILLING_ENTITLEMENT_ID, the grant that means "subscribed"
}

// AuthConfig decides how callers and webhooks prove who they are.
type AuthConfig struct {
	JWTSecret       string // AUTH_JWT_SECRET (HS256)
	AllowUserHeader bool   // AUTH_ALLOW_USER_HEADER trusts X-User-ID (dev only)
	WebhookSecret   string // WEBHOOK_SECRET shared with the billing platform
}

// OfferConfig holds the frequency caps and cooldowns of the offer engine.
type OfferConfig struct {
	DailyCap          int           // OFFER_DAILY_CAP
	WeeklyCap         int           // OFFER_WEEKLY_CAP
	SameOfferCooldown time.Duration // OFFER_SAME_COOLDOWN
	GlobalCooldown    time.Duration // OFFER_GLOBAL_COOLDOWN
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	Environment string  // OTEL_DEPLOYMENT_ENVIRONMENT, optional
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config is the whole service configuration.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Storage StorageConfig

	SwaggerEnabled bool   // SWAGGER_ENABLED
	APIBasePath    string // API_BASE_PATH

	Billing     BillingConfig
	Auth        AuthConfig
	Offers      OfferConfig
	CatalogFile string // CATALOG_FILE, optional YAML product catalog

	Rate     RateConfig
	CORS     CORSConfig
	Security SecurityConfig

	// IdempotencyTTL is how long a spend Idempotency-Key replays.
	IdempotencyTTL time.Duration // IDEMPOTENCY_TTL

	OTEL OTELConfig
}

// MustLoad is Load for callers that cannot continue without a config.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, normalizes aliases and validates the result.
// The returned Config is populated even when err is non-nil.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:              getenv("PORT", "8080"),
			ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
			ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
			WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
			IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
			MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
			GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			Pretty: getbool("LOG_PRETTY", false),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "looks.db"),
			DSN:    getenv("DB_DSN", ""),
		},
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		Billing: BillingConfig{
			BaseURL:       strings.TrimRight(getenv("BILLING_API_BASE_URL", "https://api.revenuecat.com/v1"), "/"),
			APIKey:        getenv("BILLING_API_KEY", ""),
			Timeout:       getdur("BILLING_TIMEOUT", 5*time.Second),
			EntitlementID: getenv("BILLING_ENTITLEMENT_ID", "premium"),
		},
		Auth: AuthConfig{
			JWTSecret:       getenv("AUTH_JWT_SECRET", ""),
			AllowUserHeader: getbool("AUTH_ALLOW_USER_HEADER", false),
			WebhookSecret:   getenv("WEBHOOK_SECRET", ""),
		},
		Offers: OfferConfig{
			DailyCap:          getint("OFFER_DAILY_CAP", 2),
			WeeklyCap:         getint("OFFER_WEEKLY_CAP", 5),
			SameOfferCooldown: getdur("OFFER_SAME_COOLDOWN", 24*time.Hour),
			GlobalCooldown:    getdur("OFFER_GLOBAL_COOLDOWN", 4*time.Hour),
		},
		CatalogFile: getenv("CATALOG_FILE", ""),

		Rate: RateConfig{
			RPS:   getfloat("RATE_RPS", 5.0),
			Burst: getint("RATE_BURST", 10),
		},
		CORS: CORSConfig{AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "looks-entitlements"),
			Environment: getenv("OTEL_DEPLOYMENT_ENVIRONMENT", ""),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.Log.Level == "warning" {
		cfg.Log.Level = "warn"
	}
	switch cfg.Server.GinMode {
	case "debug", "release", "test":
	default:
		cfg.Server.GinMode = "release"
	}

	return cfg, cfg.Validate()
}

// Validate checks every setting and joins all problems into one error.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}

	s := c.Server
	check(strings.TrimSpace(s.Port) != "", "PORT must not be empty")
	check(s.ReadTimeout > 0 && s.ReadHeaderTimeout > 0 && s.WriteTimeout > 0 && s.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(s.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(s.GinMode != "release" || strings.TrimSpace(c.Auth.WebhookSecret) != "",
		"WEBHOOK_SECRET must be set when GIN_MODE=release")

	switch c.Storage.Driver {
	case "sqlite":
		check(strings.TrimSpace(c.Storage.Path) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.Storage.DSN) != "", "DB_DSN must be set when DB_DRIVER=postgres")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q must be one of: sqlite, postgres", c.Storage.Driver))
	}

	check(c.Billing.Timeout > 0, "BILLING_TIMEOUT must be > 0")
	check(strings.TrimSpace(c.Billing.EntitlementID) != "", "BILLING_ENTITLEMENT_ID must not be empty")

	o := c.Offers
	check(o.DailyCap >= 1 && o.WeeklyCap >= o.DailyCap,
		"OFFER_DAILY_CAP must be >= 1 and OFFER_WEEKLY_CAP >= OFFER_DAILY_CAP (got %d/%d)", o.DailyCap, o.WeeklyCap)
	check(o.SameOfferCooldown >= 0 && o.GlobalCooldown >= 0,
		"OFFER_SAME_COOLDOWN and OFFER_GLOBAL_COOLDOWN must be >= 0")

	check(c.Rate.RPS >= 0, "RATE_RPS must be >= 0")
	check(c.Rate.Burst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}
