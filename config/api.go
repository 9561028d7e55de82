package config

import (
	"strings"
	"time"
)

// Backend origins selectable through KRAMA_MODE.
const (
	ProductionBaseURL = "https://api.kramabill.id/api"
	StagingBaseURL    = "https://staging-api.kramabill.id/api"
	LocalBaseURL      = "http://127.0.0.1:8000/api"
)

// Mode names accepted by KRAMA_MODE.
const (
	ModeProduction = "production"
	ModeStaging    = "staging"
)

// BaseURLSource records which rule picked the backend origin.
type BaseURLSource string

const (
	SourceOverride BaseURLSource = "override"
	SourceMode     BaseURLSource = "mode"
	SourceDefault  BaseURLSource = "default"
)

// APIConfig selects the backend and tunes the HTTP client.
type APIConfig struct {
	// BaseURL, when set, wins over Mode.
	BaseURL string `env:"KRAMA_API_BASE_URL"`
	Mode    string `env:"KRAMA_MODE"`

	// Timeout bounds one request; 0 leaves it to the caller's context.
	Timeout time.Duration `env:"KRAMA_HTTP_TIMEOUT" envDefault:"0s"`

	RateLimitRPS   float64 `env:"KRAMA_RATE_LIMIT_RPS"   envDefault:"10"`
	RateLimitBurst int     `env:"KRAMA_RATE_LIMIT_BURST" envDefault:"20"`

	BreakerFailures uint32        `env:"KRAMA_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"KRAMA_BREAKER_COOLDOWN" envDefault:"30s"`
}

// Sanitize normalises values and clamps the client tuning knobs.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	if c.RateLimitRPS < 0 {
		c.RateLimitRPS = 0
	}
	if c.RateLimitBurst < 1 {
		c.RateLimitBurst = 1
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
}

// ResolveBaseURL picks the backend origin: explicit override, then one of the
// two fixed mode origins, then the local default.
func (c APIConfig) ResolveBaseURL() (string, BaseURLSource) {
	if u := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); u != "" {
		return u, SourceOverride
	}
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case ModeProduction:
		return ProductionBaseURL, SourceMode
	case ModeStaging:
		return StagingBaseURL, SourceMode
	}
	return LocalBaseURL, SourceDefault
}
