package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the runtime settings of a queuectl process.
type Config struct {
	DataDir              string        `env:"QUEUECTL_DATA_DIR,default=.queuectl"`
	LockTimeout          time.Duration `env:"QUEUECTL_LOCK_TIMEOUT,default=5s"`
	PollInterval         time.Duration `env:"QUEUECTL_POLL_INTERVAL,default=1s"`
	HeartbeatInterval    time.Duration `env:"QUEUECTL_HEARTBEAT_INTERVAL,default=2s"`
	StaleClaimThreshold  time.Duration `env:"QUEUECTL_STALE_CLAIM_THRESHOLD,default=30s"`
	WorkerStaleThreshold time.Duration `env:"QUEUECTL_WORKER_STALE_THRESHOLD,default=15s"`
	StopGrace            time.Duration `env:"QUEUECTL_STOP_GRACE,default=10s"`
	OutputLimit          int           `env:"QUEUECTL_OUTPUT_LIMIT,default=65536"`
	LogLevel             string        `env:"QUEUECTL_LOG_LEVEL,default=info"`
	LogFormat            string        `env:"QUEUECTL_LOG_FORMAT,default=text"`
	HTTPAddr             string        `env:"QUEUECTL_HTTP_ADDR,default=:8080"`
	WatchJobs            bool          `env:"QUEUECTL_WATCH_JOBS,default=true"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.DataDir) == "" {
		errors = append(errors, "QUEUECTL_DATA_DIR is required")
	}

	if c.LockTimeout <= 0 {
		errors = append(errors, "QUEUECTL_LOCK_TIMEOUT must be positive")
	}

	if c.PollInterval <= 0 {
		errors = append(errors, "QUEUECTL_POLL_INTERVAL must be positive")
	}

	if c.HeartbeatInterval <= 0 {
		errors = append(errors, "QUEUECTL_HEARTBEAT_INTERVAL must be positive")
	}

	// a worker must be able to heartbeat at least once before it looks dead
	if c.WorkerStaleThreshold <= c.HeartbeatInterval {
		errors = append(errors, "QUEUECTL_WORKER_STALE_THRESHOLD must exceed QUEUECTL_HEARTBEAT_INTERVAL")
	}

	if c.StaleClaimThreshold <= 0 {
		errors = append(errors, "QUEUECTL_STALE_CLAIM_THRESHOLD must be positive")
	}

	if c.StopGrace < 0 {
		errors = append(errors, "QUEUECTL_STOP_GRACE must be non-negative")
	}

	if c.OutputLimit <= 0 {
		errors = append(errors, "QUEUECTL_OUTPUT_LIMIT must be positive")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, "QUEUECTL_LOG_FORMAT must be text or json")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
