package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - api.go: Backend target selection and HTTP client behavior
//   - storage.go: Where the bearer token is persisted
//   - ui.go: Checkout and payment flow settings
//   - logging.go: Log level and format
//   - observability.go: Metrics emission
type AppConfig struct {
	API     APIConfig
	Storage StorageConfig
	UI      UIConfig
	Logging LoggingConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Storage.Sanitize()
	c.UI.Sanitize()
	c.Logging.Sanitize()
	c.Observability.Sanitize()
}
