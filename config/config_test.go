package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func parse(t *testing.T, vars map[string]string) AppConfig {
	t.Helper()
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()
	return cfg
}

func TestAppConfig_Defaults(t *testing.T) {
	cfg := parse(t, map[string]string{})

	if cfg.API.RateLimitRPS != 10 || cfg.API.RateLimitBurst != 20 {
		t.Errorf("unexpected rate limit defaults: %v/%d", cfg.API.RateLimitRPS, cfg.API.RateLimitBurst)
	}
	if cfg.API.BreakerFailures != 5 || cfg.API.BreakerCooldown != 30*time.Second {
		t.Errorf("unexpected breaker defaults: %d/%s", cfg.API.BreakerFailures, cfg.API.BreakerCooldown)
	}
	if cfg.Storage.TokenStore != TokenStoreFile {
		t.Errorf("TokenStore = %q, want file", cfg.Storage.TokenStore)
	}
	if filepath.Base(cfg.Storage.TokenFile) != "authToken" {
		t.Errorf("TokenFile = %q, want .../authToken", cfg.Storage.TokenFile)
	}
	if cfg.UI.PaymentMethod != "QRIS" || cfg.UI.ConfirmRedirectDelay != 3*time.Second {
		t.Errorf("unexpected UI defaults: %+v", cfg.UI)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != LogFormatJSON {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Observability.Metrics.IsEnabled() {
		t.Error("metrics must be disabled by default")
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	cfg := parse(t, map[string]string{
		"KRAMA_MODE":                   " Staging ",
		"KRAMA_HTTP_TIMEOUT":           "15s",
		"KRAMA_TOKEN_STORE":            "REDIS",
		"KRAMA_TOKEN_KEY":              "made",
		"REDIS_URI":                    "redis:6379",
		"REDIS_DB":                     "3",
		"KRAMA_PAYMENT_METHOD":         "transfer",
		"KRAMA_CONFIRM_REDIRECT_DELAY": "500ms",
		"LOG_LEVEL":                    "WARNING",
		"LOG_FORMAT":                   "text",
	})

	if got, src := cfg.API.ResolveBaseURL(); got != StagingBaseURL || src != SourceMode {
		t.Errorf("ResolveBaseURL() = %q, %q", got, src)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("Timeout = %s", cfg.API.Timeout)
	}
	if cfg.Storage.TokenStore != TokenStoreRedis || cfg.Storage.TokenKey != "made" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Storage.Redis.URI != "redis:6379" || cfg.Storage.Redis.DB != 3 {
		t.Errorf("unexpected redis: %+v", cfg.Storage.Redis)
	}
	if cfg.UI.PaymentMethod != "transfer" || cfg.UI.ConfirmRedirectDelay != 500*time.Millisecond {
		t.Errorf("unexpected UI: %+v", cfg.UI)
	}
	if cfg.Logging.SlogLevel() != slog.LevelWarn || cfg.Logging.Format != LogFormatText {
		t.Errorf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestAPIConfig_ResolveBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     APIConfig
		want    string
		wantSrc BaseURLSource
	}{
		{"override wins over mode", APIConfig{BaseURL: "https://desa.example/api/", Mode: ModeProduction}, "https://desa.example/api", SourceOverride},
		{"production", APIConfig{Mode: "production"}, ProductionBaseURL, SourceMode},
		{"staging", APIConfig{Mode: "STAGING"}, StagingBaseURL, SourceMode},
		{"unknown mode", APIConfig{Mode: "preview"}, LocalBaseURL, SourceDefault},
		{"nothing set", APIConfig{}, LocalBaseURL, SourceDefault},
		{"blank override", APIConfig{BaseURL: "   "}, LocalBaseURL, SourceDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := tt.cfg.ResolveBaseURL()
			if got != tt.want || src != tt.wantSrc {
				t.Errorf("ResolveBaseURL() = %q, %q; want %q, %q", got, src, tt.want, tt.wantSrc)
			}
		})
	}
}

func TestAPIConfig_Sanitize(t *testing.T) {
	cfg := APIConfig{Timeout: -time.Second, RateLimitRPS: -1, RateLimitBurst: 0}
	cfg.Sanitize()

	if cfg.Timeout != 0 || cfg.RateLimitRPS != 0 || cfg.RateLimitBurst != 1 {
		t.Errorf("unexpected clamps: %+v", cfg)
	}
	if cfg.BreakerFailures != 5 || cfg.BreakerCooldown != 30*time.Second {
		t.Errorf("breaker defaults not restored: %+v", cfg)
	}
}

func TestStorageConfig_Sanitize(t *testing.T) {
	cfg := StorageConfig{TokenStore: "sqlite", TokenKey: " ", TokenFile: " /tmp/tok "}
	cfg.Redis.UseSentinel = true
	cfg.Sanitize()

	if cfg.TokenStore != TokenStoreFile {
		t.Errorf("unknown backend must fall back to file, got %q", cfg.TokenStore)
	}
	if cfg.TokenKey != "authToken" {
		t.Errorf("TokenKey = %q", cfg.TokenKey)
	}
	if cfg.TokenFile != "/tmp/tok" {
		t.Errorf("TokenFile = %q", cfg.TokenFile)
	}
	if cfg.Redis.UseSentinel {
		t.Error("sentinel without nodes must be disabled")
	}
}

func TestStorageConfig_DefaultTokenFile(t *testing.T) {
	cfg := StorageConfig{TokenKey: "tok"}
	cfg.Sanitize()

	if !strings.HasSuffix(cfg.TokenFile, filepath.Join("billing-krama", "tok")) {
		t.Errorf("TokenFile = %q", cfg.TokenFile)
	}
}

func TestUIConfig_Sanitize(t *testing.T) {
	cfg := UIConfig{PaymentMethod: " ", ConfirmRedirectDelay: -1}
	cfg.Sanitize()

	if cfg.PaymentMethod != "QRIS" || cfg.ConfirmRedirectDelay != 3*time.Second {
		t.Errorf("defaults not restored: %+v", cfg)
	}
}

func TestLoggingConfig_Sanitize(t *testing.T) {
	tests := []struct {
		level, format   string
		wantLevel       slog.Level
		wantFormatIsTxt bool
	}{
		{"debug", "text", slog.LevelDebug, true},
		{"ERROR", "json", slog.LevelError, false},
		{"verbose", "yaml", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		cfg := LoggingConfig{Level: tt.level, Format: tt.format}
		cfg.Sanitize()
		if cfg.SlogLevel() != tt.wantLevel {
			t.Errorf("%s: level = %v", tt.level, cfg.SlogLevel())
		}
		if (cfg.Format == LogFormatText) != tt.wantFormatIsTxt {
			t.Errorf("%s: format = %q", tt.format, cfg.Format)
		}
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}
