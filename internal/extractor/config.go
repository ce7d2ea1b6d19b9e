package extractor

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config controls the extractor's security, performance, and politeness
// behavior. Adapted from the teacher's ContentFetchConfig, extended with
// the global concurrency and anti-detection fields spec §4.5 requires.
type Config struct {
	Timeout         time.Duration
	MaxBodySize     int64
	MaxRedirects    int
	DenyPrivateIPs  bool
	GlobalMaxConcur int
	AntiDetection   bool
}

// DefaultConfig mirrors the teacher's production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxBodySize:     10 * 1024 * 1024,
		MaxRedirects:    5,
		DenyPrivateIPs:  true,
		GlobalMaxConcur: 10,
		AntiDetection:   true,
	}
}

// EffectiveConcurrency implements spec §4.5's semaphore sizing rule:
// min(globalMaxConcurrent, 2 if antiDetection else globalMaxConcurrent).
func (c Config) EffectiveConcurrency() int {
	if c.AntiDetection && c.GlobalMaxConcur > 2 {
		return 2
	}
	return c.GlobalMaxConcur
}

// Validate applies the teacher's range checks.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("extractor: timeout must be positive, got %v", c.Timeout)
	}
	const minBody, maxBody = int64(1024), int64(100 * 1024 * 1024)
	if c.MaxBodySize < minBody || c.MaxBodySize > maxBody {
		return fmt.Errorf("extractor: max body size must be between %d and %d bytes, got %d", minBody, maxBody, c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("extractor: max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	if c.GlobalMaxConcur < 1 || c.GlobalMaxConcur > 50 {
		return fmt.Errorf("extractor: global max concurrency must be between 1 and 50, got %d", c.GlobalMaxConcur)
	}
	return nil
}

// LoadConfigFromEnv reads EXTRACTOR_* environment variables, falling back
// to DefaultConfig for anything unset, then validates the result.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("EXTRACTOR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid EXTRACTOR_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("EXTRACTOR_MAX_BODY_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid EXTRACTOR_MAX_BODY_SIZE: %w", err)
		}
		cfg.MaxBodySize = n
	}
	if v := os.Getenv("EXTRACTOR_MAX_REDIRECTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid EXTRACTOR_MAX_REDIRECTS: %w", err)
		}
		cfg.MaxRedirects = n
	}
	if v := os.Getenv("EXTRACTOR_DENY_PRIVATE_IPS"); v != "" {
		cfg.DenyPrivateIPs = v == "true"
	}
	if v := os.Getenv("EXTRACTOR_GLOBAL_MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid EXTRACTOR_GLOBAL_MAX_CONCURRENCY: %w", err)
		}
		cfg.GlobalMaxConcur = n
	}
	if v := os.Getenv("EXTRACTOR_ANTI_DETECTION"); v != "" {
		cfg.AntiDetection = v == "true"
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
