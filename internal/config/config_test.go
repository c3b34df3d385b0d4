package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_PopulatesDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "sightline", cfg.Logger.ServiceName)

	assert.Equal(t, 100, cfg.Detector.MinArea)
	assert.Equal(t, 50000, cfg.Detector.MaxArea)
	assert.Equal(t, 30, cfg.Detector.OCRConfidenceFloor)
	assert.Equal(t, 10, cfg.Detector.MinCircleRadius)
	assert.Equal(t, 100, cfg.Detector.MaxCircleRadius)

	assert.InDelta(t, 0.6, cfg.Safety.ConfidenceThreshold, 1e-9)
	assert.Equal(t, "permissive", cfg.Safety.Policy)

	assert.Equal(t, 3, cfg.Executor.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Executor.RetryDelay)

	assert.Equal(t, "file", cfg.RunLog.Type)
	assert.Equal(t, "postgres", cfg.RunLog.Postgres.User)

	assert.Equal(t, "desktop", cfg.Capture.Backend)
	assert.Equal(t, time.Second, cfg.Capture.SettleDelay)
	assert.Equal(t, 3*time.Second, cfg.Capture.LaunchWait)
	assert.True(t, cfg.Capture.Web.Headless)

	assert.Equal(t, "xdotool", cfg.Actuator.Tool)
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := map[string]struct {
		mutate  func(c *Config)
		wantErr string
	}{
		"negative min area": {
			func(c *Config) { c.Detector.MinArea = -1 },
			"detector.min_area",
		},
		"max area below min": {
			func(c *Config) { c.Detector.MaxArea = c.Detector.MinArea },
			"detector.max_area",
		},
		"ocr floor above 100": {
			func(c *Config) { c.Detector.OCRConfidenceFloor = 101 },
			"ocr_confidence_floor",
		},
		"threshold above one": {
			func(c *Config) { c.Safety.ConfidenceThreshold = 1.5 },
			"confidence_threshold",
		},
		"threshold below zero": {
			func(c *Config) { c.Safety.ConfidenceThreshold = -0.1 },
			"confidence_threshold",
		},
		"unknown policy": {
			func(c *Config) { c.Safety.Policy = "lenient" },
			"safety.policy",
		},
		"zero retries": {
			func(c *Config) { c.Executor.MaxRetries = 0 },
			"max_retries",
		},
		"negative retry delay": {
			func(c *Config) { c.Executor.RetryDelay = -time.Second },
			"retry_delay",
		},
		"unknown runlog type": {
			func(c *Config) { c.RunLog.Type = "redis" },
			"runlog.type",
		},
		"unknown capture backend": {
			func(c *Config) { c.Capture.Backend = "android" },
			"capture.backend",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewConfigFromViper_OverridesDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("safety.policy", "conservative")
	v.Set("executor.max_retries", 5)
	v.Set("capture.backend", "web")
	v.Set("capture.web.start_url", "https://example.com")

	cfg, err := NewConfigFromViper(v)

	require.NoError(t, err)
	assert.Equal(t, "conservative", cfg.Safety.Policy)
	assert.Equal(t, 5, cfg.Executor.MaxRetries)
	assert.Equal(t, "web", cfg.Capture.Backend)
	assert.Equal(t, "https://example.com", cfg.Capture.Web.StartURL)
	// Untouched sections keep their defaults.
	assert.Equal(t, "file", cfg.RunLog.Type)
}

func TestNewConfigFromViper_RejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("runlog.type", "redis")

	_, err := NewConfigFromViper(v)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNewConfigFromViper_PasswordFromEnvironment(t *testing.T) {
	t.Setenv("SIGHTLINE_RUNLOG_PG_PASSWORD", "s3cret")
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)

	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.RunLog.Postgres.Password)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db.internal", Port: 5433, User: "sightline",
		Password: "pw", DBName: "runs", SSLMode: "require",
	}

	assert.Equal(t, "postgres://sightline:pw@db.internal:5433/runs?sslmode=require", p.DSN())
}
