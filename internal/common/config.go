package common

import "time"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Quota    QuotaConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64

	// Basic auth for the admin receipt-review endpoints; both empty
	// disables auth.
	AdminUser string
	AdminPass string
}

// DatabaseConfig holds ledger database configuration
type DatabaseConfig struct {
	Path string
}

// LLMConfig holds generation-model configuration
type LLMConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	Concurrency int
}

// QuotaConfig holds free-tier quota configuration
type QuotaConfig struct {
	FreeTierLimit int
}

// Validate checks the loaded configuration before wiring anything.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "server address is required", ErrInvalidInput)
	}
	if c.Database.Path == "" {
		return NewAppError("CONFIG_ERROR", "database path is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
	}
	if c.Quota.FreeTierLimit <= 0 {
		return NewAppError("CONFIG_ERROR", "free tier limit must be positive", ErrInvalidInput)
	}
	return nil
}
