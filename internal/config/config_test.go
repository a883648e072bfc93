package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/budgets-bfa-go/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STORE_DRIVER", "SUPABASE_URL", "SUPABASE_ANON_KEY", "SUPABASE_SERVICE_ROLE_KEY",
		"DATABASE_URL", "N8N_WEBHOOK_URL", "N8N_WEBHOOK_TOKEN", "PUBLIC_BASE_URL",
		"WEBHOOK_TIMEOUT", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := config.Load()

	if cfg.WebhookTimeout != 7*time.Second {
		t.Errorf("expected 7s webhook timeout, got %s", cfg.WebhookTimeout)
	}
	if cfg.Driver() != "" {
		t.Errorf("expected no store driver, got %q", cfg.Driver())
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("expected default origins [*], got %v", cfg.AllowedOrigins)
	}
}

func TestResolve_TrimsBlankValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("N8N_WEBHOOK_URL", "   ")
	t.Setenv("N8N_WEBHOOK_TOKEN", "  secret  ")
	t.Setenv("PUBLIC_BASE_URL", "\thttps://app.example.com\n")

	res := config.Load().Resolve()

	if res.WebhookURL != "" {
		t.Errorf("expected blank webhook url to be unset, got %q", res.WebhookURL)
	}
	if res.WebhookToken != "secret" {
		t.Errorf("expected trimmed token, got %q", res.WebhookToken)
	}
	if res.PublicBase != "https://app.example.com" {
		t.Errorf("expected trimmed public base, got %q", res.PublicBase)
	}
	if res.StoreConfigured {
		t.Error("expected store not configured")
	}
}

func TestDriver(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"supabase needs both url and key", map[string]string{"SUPABASE_URL": "https://x.supabase.co"}, ""},
		{"supabase", map[string]string{"SUPABASE_URL": "https://x.supabase.co", "SUPABASE_SERVICE_ROLE_KEY": "k"}, config.DriverSupabase},
		{"postgres fallback", map[string]string{"DATABASE_URL": "postgres://localhost/db"}, config.DriverPostgres},
		{"supabase preferred", map[string]string{"SUPABASE_URL": "https://x.supabase.co", "SUPABASE_SERVICE_ROLE_KEY": "k", "DATABASE_URL": "postgres://localhost/db"}, config.DriverSupabase},
		{"explicit postgres", map[string]string{"STORE_DRIVER": "postgres", "SUPABASE_URL": "https://x.supabase.co", "SUPABASE_SERVICE_ROLE_KEY": "k", "DATABASE_URL": "postgres://localhost/db"}, config.DriverPostgres},
		{"explicit driver without settings", map[string]string{"STORE_DRIVER": "postgres"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := config.Load().Driver(); got != tt.want {
				t.Errorf("expected driver %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("N8N_WEBHOOK_TOKEN", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nN8N_WEBHOOK_TOKEN=from-file\nN8N_WEBHOOK_URL=\"https://n8n.example.com/webhook/abc\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv.Load skips keys that are already present, even when empty,
	// so drop the blank entry set by clearEnv.
	os.Unsetenv("N8N_WEBHOOK_URL")
	t.Cleanup(func() { os.Unsetenv("N8N_WEBHOOK_URL") })

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := os.Getenv("N8N_WEBHOOK_TOKEN"); got != "from-env" {
		t.Errorf("expected env to win, got %q", got)
	}
	if got := os.Getenv("N8N_WEBHOOK_URL"); got != "https://n8n.example.com/webhook/abc" {
		t.Errorf("expected value from file, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}
