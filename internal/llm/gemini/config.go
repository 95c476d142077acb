package gemini

import (
	"os"
	"time"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string        // if empty, falls back to env GEMINI_API_KEY
	Model       string        // e.g., "gemini-2.0-flash"
	Temperature float32       // 0..2
	Timeout     time.Duration // per-attempt timeout
	MaxAttempts int           // bounded retry on transient upstream failures
	Backoff     time.Duration // initial backoff, doubled per attempt
}

func (cfg Config) withDefaults() Config {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return cfg
}
