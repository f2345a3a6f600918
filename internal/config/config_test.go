package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DataDir:              ".queuectl",
		LockTimeout:          5 * time.Second,
		PollInterval:         time.Second,
		HeartbeatInterval:    2 * time.Second,
		StaleClaimThreshold:  30 * time.Second,
		WorkerStaleThreshold: 15 * time.Second,
		StopGrace:            10 * time.Second,
		OutputLimit:          65536,
		LogLevel:             "info",
		LogFormat:            "text",
		HTTPAddr:             ":8080",
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		setupEnv      func(*Config) error
		expectError   bool
		errorContains string
		validate      func(*testing.T, *Config)
	}{
		{
			name: "valid configuration",
			setupEnv: func(cfg *Config) error {
				*cfg = validConfig()
				return nil
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ".queuectl", cfg.DataDir)
				assert.Equal(t, 5*time.Second, cfg.LockTimeout)
				assert.Equal(t, 30*time.Second, cfg.StaleClaimThreshold)
			},
		},
		{
			name: "custom values override defaults",
			setupEnv: func(cfg *Config) error {
				*cfg = validConfig()
				cfg.DataDir = "/var/lib/queuectl"
				cfg.PollInterval = 250 * time.Millisecond
				cfg.LogFormat = "json"
				return nil
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/lib/queuectl", cfg.DataDir)
				assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
				assert.Equal(t, "json", cfg.LogFormat)
			},
		},
		{
			name: "env processing error",
			setupEnv: func(cfg *Config) error {
				return errors.New("env: QUEUECTL_LOCK_TIMEOUT: invalid duration")
			},
			expectError:   true,
			errorContains: "failed to process env config",
		},
		{
			name: "validation error after successful env processing",
			setupEnv: func(cfg *Config) error {
				*cfg = validConfig()
				cfg.DataDir = " "
				return nil
			},
			expectError:   true,
			errorContains: "config validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalEnvProcess := envProcess
			defer func() { envProcess = originalEnvProcess }()

			envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
				return tt.setupEnv(v.(*Config))
			}

			cfg, err := LoadConfigFromEnv(context.Background())

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}

			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("QUEUECTL_STOP_GRACE", "3s")

	cfg, err := LoadConfigFromEnv(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.StopGrace)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 65536, cfg.OutputLimit)
	assert.True(t, cfg.WatchJobs)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorContains []string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:          "empty data dir",
			mutate:        func(c *Config) { c.DataDir = "" },
			errorContains: []string{"QUEUECTL_DATA_DIR is required"},
		},
		{
			name: "worker stale threshold not above heartbeat",
			mutate: func(c *Config) {
				c.HeartbeatInterval = 5 * time.Second
				c.WorkerStaleThreshold = 5 * time.Second
			},
			errorContains: []string{"QUEUECTL_WORKER_STALE_THRESHOLD must exceed"},
		},
		{
			name: "multiple errors are joined",
			mutate: func(c *Config) {
				c.LockTimeout = 0
				c.OutputLimit = -1
				c.LogFormat = "xml"
			},
			errorContains: []string{
				"QUEUECTL_LOCK_TIMEOUT must be positive",
				"QUEUECTL_OUTPUT_LIMIT must be positive",
				"QUEUECTL_LOG_FORMAT must be text or json",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if len(tt.errorContains) == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			for _, substr := range tt.errorContains {
				assert.Contains(t, err.Error(), substr)
			}
		})
	}
}
