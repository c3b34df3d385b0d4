package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector"`
	Safety   SafetyConfig   `mapstructure:"safety" yaml:"safety"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Planner  PlannerConfig  `mapstructure:"planner" yaml:"planner"`
	RunLog   RunLogConfig   `mapstructure:"runlog" yaml:"runlog"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Actuator ActuatorConfig `mapstructure:"actuator" yaml:"actuator"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DetectorConfig bounds the geometric detection passes.
type DetectorConfig struct {
	// MinArea and MaxArea bound the bounding-box area (px^2) a contour must
	// enclose to be emitted by the geometric pass.
	MinArea int `mapstructure:"min_area" yaml:"min_area"`
	MaxArea int `mapstructure:"max_area" yaml:"max_area"`
	// OCRConfidenceFloor drops recognized tokens below this 0-100 score.
	OCRConfidenceFloor int `mapstructure:"ocr_confidence_floor" yaml:"ocr_confidence_floor"`
	// Circle pass bounds, in pixels.
	MinCircleRadius int `mapstructure:"min_circle_radius" yaml:"min_circle_radius"`
	MaxCircleRadius int `mapstructure:"max_circle_radius" yaml:"max_circle_radius"`
}

// SafetyConfig tunes the plan safety gate.
type SafetyConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	// Policy selects the gate decision strategy: "permissive" lets plan
	// confidence at or above the threshold override destructive-keyword
	// warnings; "conservative" treats any warning as unsafe.
	Policy string `mapstructure:"policy" yaml:"policy"`
}

// ExecutorConfig bounds per-step retry behavior.
type ExecutorConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// LLMProvider names a supported model provider.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOllama LLMProvider = "ollama"
)

// LLMModelConfig defines the configuration for a single model endpoint.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// PlannerConfig configures the LLM-backed planner and its model routing.
type PlannerConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
	// RequestsPerSecond rate-limits calls to the planning API.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// PostgresConfig holds connection details for a PostgreSQL run log store.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"-"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DSN renders the config as a pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// RunLogConfig selects the run log backend.
type RunLogConfig struct {
	// Type is one of "file", "sqlite", "postgres".
	Type       string         `mapstructure:"type" yaml:"type"`
	Dir        string         `mapstructure:"dir" yaml:"dir"`
	SQLitePath string         `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// WebConfig tunes the chromedp-backed web capture/actuation backend.
type WebConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	StartURL          string        `mapstructure:"start_url" yaml:"start_url"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// CaptureConfig selects and tunes the screen capture backend.
type CaptureConfig struct {
	// Backend is "desktop" (native screenshot tooling) or "web" (chromedp).
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	ScreenshotDir string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	// SettleDelay is the blocking wait after each capture so the GUI can
	// finish painting before perception runs.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// LaunchWait is the blocking wait after an application launch.
	LaunchWait time.Duration `mapstructure:"launch_wait" yaml:"launch_wait"`
	// Browser names the browser command for opening websites on the desktop
	// backend. Empty uses the system default opener.
	Browser string    `mapstructure:"browser" yaml:"browser"`
	Web     WebConfig `mapstructure:"web" yaml:"web"`
}

// ActuatorConfig selects the input injection tool for the desktop backend.
type ActuatorConfig struct {
	// Tool is "xdotool" or "ydotool".
	Tool string `mapstructure:"tool" yaml:"tool"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sightline")
	v.SetDefault("logger.log_file", "sightline.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Detector --
	v.SetDefault("detector.min_area", 100)
	v.SetDefault("detector.max_area", 50000)
	v.SetDefault("detector.ocr_confidence_floor", 30)
	v.SetDefault("detector.min_circle_radius", 10)
	v.SetDefault("detector.max_circle_radius", 100)

	// -- Safety --
	v.SetDefault("safety.confidence_threshold", 0.6)
	v.SetDefault("safety.policy", "permissive")

	// -- Executor --
	v.SetDefault("executor.max_retries", 3)
	v.SetDefault("executor.retry_delay", "500ms")

	// -- Planner --
	v.SetDefault("planner.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("planner.default_powerful_model", "gemini-2.5-pro")
	v.SetDefault("planner.requests_per_second", 1.0)

	// -- Run log --
	v.SetDefault("runlog.type", "file")
	v.SetDefault("runlog.dir", "logs")
	v.SetDefault("runlog.sqlite_path", "sightline_runs.db")
	v.SetDefault("runlog.postgres.host", "localhost")
	v.SetDefault("runlog.postgres.port", 5432)
	v.SetDefault("runlog.postgres.user", "postgres")
	v.SetDefault("runlog.postgres.password", "")
	v.SetDefault("runlog.postgres.dbname", "sightline_runs")
	v.SetDefault("runlog.postgres.sslmode", "disable")

	// -- Capture --
	v.SetDefault("capture.backend", "desktop")
	v.SetDefault("capture.screenshot_dir", "screenshots")
	v.SetDefault("capture.settle_delay", "1s")
	v.SetDefault("capture.launch_wait", "3s")
	v.SetDefault("capture.browser", "")
	v.SetDefault("capture.web.headless", true)
	v.SetDefault("capture.web.navigation_timeout", "90s")

	// -- Actuator --
	v.SetDefault("actuator.tool", "xdotool")
}

// NewDefaultConfig creates a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with static defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("runlog.postgres.password", "SIGHTLINE_RUNLOG_PG_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Detector.MinArea < 0 {
		return fmt.Errorf("detector.min_area must be non-negative")
	}
	if c.Detector.MaxArea <= c.Detector.MinArea {
		return fmt.Errorf("detector.max_area must exceed detector.min_area")
	}
	if c.Detector.OCRConfidenceFloor < 0 || c.Detector.OCRConfidenceFloor > 100 {
		return fmt.Errorf("detector.ocr_confidence_floor must be in [0,100]")
	}
	if c.Safety.ConfidenceThreshold < 0.0 || c.Safety.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("safety.confidence_threshold must be between 0.0 and 1.0")
	}
	switch c.Safety.Policy {
	case "permissive", "conservative":
	default:
		return fmt.Errorf("safety.policy must be 'permissive' or 'conservative', got %q", c.Safety.Policy)
	}
	if c.Executor.MaxRetries <= 0 {
		return fmt.Errorf("executor.max_retries must be a positive integer")
	}
	if c.Executor.RetryDelay < 0 {
		return fmt.Errorf("executor.retry_delay must not be negative")
	}
	switch c.RunLog.Type {
	case "file", "sqlite", "postgres":
	default:
		return fmt.Errorf("runlog.type must be 'file', 'sqlite' or 'postgres', got %q", c.RunLog.Type)
	}
	switch c.Capture.Backend {
	case "desktop", "web":
	default:
		return fmt.Errorf("capture.backend must be 'desktop' or 'web', got %q", c.Capture.Backend)
	}
	return nil
}
