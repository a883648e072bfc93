package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded once at startup from environment variables with defaults
// and handed to each component at construction time.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client (store calls)
	HTTPTimeout time.Duration

	// Observability
	OTLPEndpoint string

	// Store
	StoreDriver        string // "supabase", "postgres" or "" (auto)
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	DatabaseURL        string

	// Webhook (n8n)
	WebhookURL     string
	WebhookToken   string
	WebhookTimeout time.Duration
	PublicBaseURL  string

	// CORS
	AllowedOrigins []string
}

// Resolved is the trimmed view of the settings the budget handlers depend on.
// An empty string means "not set".
type Resolved struct {
	StoreConfigured bool
	WebhookURL      string
	WebhookToken    string
	PublicBase      string
}

const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", "")),
		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		WebhookURL:     getEnv("N8N_WEBHOOK_URL", ""),
		WebhookToken:   getEnv("N8N_WEBHOOK_TOKEN", ""),
		WebhookTimeout: getEnvDuration("WEBHOOK_TIMEOUT", 7*time.Second),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

// Driver returns the store backend to use, or "" when none is configured.
// An explicit STORE_DRIVER wins; otherwise Supabase is preferred over DATABASE_URL.
func (c *Config) Driver() string {
	supabaseOK := c.SupabaseURL != "" && c.SupabaseServiceKey != ""
	postgresOK := c.DatabaseURL != ""

	switch c.StoreDriver {
	case DriverSupabase:
		if supabaseOK {
			return DriverSupabase
		}
		return ""
	case DriverPostgres:
		if postgresOK {
			return DriverPostgres
		}
		return ""
	}

	switch {
	case supabaseOK:
		return DriverSupabase
	case postgresOK:
		return DriverPostgres
	default:
		return ""
	}
}

// Resolve reports which settings are present. It never fails.
func (c *Config) Resolve() Resolved {
	return Resolved{
		StoreConfigured: c.Driver() != "",
		WebhookURL:      c.WebhookURL,
		WebhookToken:    c.WebhookToken,
		PublicBase:      c.PublicBaseURL,
	}
}

// getEnv returns the trimmed value of key; blank values count as unset.
func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := getEnv(key, ""); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := getEnv(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
