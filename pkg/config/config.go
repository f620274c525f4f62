package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/switchyard/pkg/task"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey      string
	OpenAIAPIKey         string
	GoogleAPIKey         string
	OllamaHost           string
	DockerModelRunnerURL string
	DatabasePath         string
	ArchivePath          string
	LogLevel             string
	OTLPEndpoint         string
	CalibrationSchedule  string
	Retry                RetryConfig
	Pricing              PricingConfig
	Profile              task.UserProfile
	Routing              *RoutingTables
	Catalog              *ModelCatalog
	ConfigDir            string
}

// FileConfig represents the structure of ~/.switchyard/config.yaml
type FileConfig struct {
	Endpoints EndpointsConfig  `yaml:"endpoints"`
	Database  string           `yaml:"database,omitempty"`
	Archive   string           `yaml:"archive,omitempty"`
	LogLevel  string           `yaml:"log_level,omitempty"`
	Telemetry TelemetryConfig  `yaml:"telemetry,omitempty"`
	Calibrate CalibrateConfig  `yaml:"calibration,omitempty"`
	Retry     RetryConfig      `yaml:"retry,omitempty"`
	Pricing   PricingConfig    `yaml:"pricing,omitempty"`
	Profile   task.UserProfile `yaml:"profile,omitempty"`
}

// EndpointsConfig holds local backend endpoints.
type EndpointsConfig struct {
	Ollama            string `yaml:"ollama,omitempty"`
	DockerModelRunner string `yaml:"docker_model_runner,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// CalibrateConfig configures periodic hint recalibration. Schedule is a cron
// expression; empty means the calibrator default.
type CalibrateConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
}

// RetryConfig defines retry and backoff behavior.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
	TimeoutMs     int `yaml:"timeout_ms,omitempty"`
}

// PricingConfig maps provider -> model -> pricing.
type PricingConfig map[string]map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

const (
	defaultOllamaHost        = "http://localhost:11434/v1"
	defaultDockerModelRunner = "http://localhost:12434/engines/v1"
)

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg := build(configDir)

	routingPath := filepath.Join(configDir, "routing.yaml")
	if _, err := os.Stat(routingPath); err == nil {
		routing, err := LoadRoutingTables(routingPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load routing tables: %w", err)
		}
		cfg.Routing = routing
	} else {
		cfg.Routing = DefaultRoutingTables()
	}

	catalog, err := LoadCatalogWithFallback(filepath.Join(configDir, "models.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load model catalog: %w", err)
	}
	cfg.Catalog = catalog

	return cfg, nil
}

// LoadWithRoutingFile loads config with a specific routing tables file.
func LoadWithRoutingFile(routingPath string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	routing, err := LoadRoutingTables(routingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing tables from %s: %w", routingPath, err)
	}
	cfg.Routing = routing

	return cfg, nil
}

func build(configDir string) *Config {
	// A .env file next to the config is optional; real env vars still win.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:         os.Getenv("GOOGLE_API_KEY"),
		OllamaHost:           getEnvOrDefault("OLLAMA_HOST", orDefault(fileConfig.Endpoints.Ollama, defaultOllamaHost)),
		DockerModelRunnerURL: getEnvOrDefault("DOCKER_MODEL_RUNNER_URL", orDefault(fileConfig.Endpoints.DockerModelRunner, defaultDockerModelRunner)),
		DatabasePath:         getEnvOrDefault("SWITCHYARD_DB", orDefault(fileConfig.Database, filepath.Join(configDir, "switchyard.db"))),
		ArchivePath:          orDefault(fileConfig.Archive, filepath.Join(configDir, "archive")),
		LogLevel:             getEnvOrDefault("SWITCHYARD_LOG_LEVEL", orDefault(fileConfig.LogLevel, "info")),
		OTLPEndpoint:         getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", fileConfig.Telemetry.OTLPEndpoint),
		CalibrationSchedule:  getEnvOrDefault("SWITCHYARD_CALIBRATION_SCHEDULE", fileConfig.Calibrate.Schedule),
		Retry:                fileConfig.Retry,
		Pricing:              fileConfig.Pricing,
		Profile:              fileConfig.Profile,
		ConfigDir:            configDir,
	}
	applyRetryDefaults(&cfg.Retry)

	return cfg
}

// HasAdapter returns true if the given provider can be constructed.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "ollama":
		return c.OllamaHost != ""
	case "docker":
		return c.DockerModelRunnerURL != ""
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

func applyRetryDefaults(r *RetryConfig) {
	if r.MaxRetries == 0 {
		r.MaxRetries = 2
	}
	if r.BaseBackoffMs == 0 {
		r.BaseBackoffMs = 200
	}
	if r.MaxBackoffMs == 0 {
		r.MaxBackoffMs = 2000
	}
	if r.MaxBackoffMs < r.BaseBackoffMs {
		r.MaxBackoffMs = r.BaseBackoffMs
	}
	if r.TimeoutMs == 0 {
		r.TimeoutMs = 120000
	}
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func getConfigDir() (string, error) {
	configDir := os.Getenv("SWITCHYARD_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".switchyard")
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
