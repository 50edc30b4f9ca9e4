package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30m" parse naturally.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Sync       SyncConfig       `yaml:"sync"`
	Backup     BackupConfig     `yaml:"backup"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SyncConfig drives the external calendar synchronizer and the maintenance
// jobs that keep synced data honest.
type SyncConfig struct {
	Interval            Duration `yaml:"interval"`
	InitialDelay        Duration `yaml:"initial_delay"`
	FetchTimeout        Duration `yaml:"fetch_timeout"`
	FailureThreshold    float64  `yaml:"failure_threshold"`
	ConsistencyInterval Duration `yaml:"consistency_interval"`
	CleanupInterval     Duration `yaml:"cleanup_interval"`
	StaleRetentionDays  int      `yaml:"stale_retention_days"`
	SnapshotTTL         Duration `yaml:"snapshot_ttl"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	OwnerChatID int64  `yaml:"owner_chat_id"`
	Debug       bool   `yaml:"debug"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment may already be populated.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Sync.FailureThreshold < 0 || c.Sync.FailureThreshold > 1 {
		return fmt.Errorf("sync failure_threshold must be within [0,1], got %v", c.Sync.FailureThreshold)
	}
	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api_keys are configured")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "villasole"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Sync defaults
	if c.Sync.Interval == 0 {
		c.Sync.Interval = Duration(30 * time.Minute)
	}
	if c.Sync.InitialDelay == 0 {
		c.Sync.InitialDelay = Duration(10 * time.Second)
	}
	if c.Sync.FetchTimeout == 0 {
		c.Sync.FetchTimeout = Duration(30 * time.Second)
	}
	if c.Sync.FailureThreshold == 0 {
		c.Sync.FailureThreshold = 0.5
	}
	if c.Sync.ConsistencyInterval == 0 {
		c.Sync.ConsistencyInterval = Duration(6 * time.Hour)
	}
	if c.Sync.CleanupInterval == 0 {
		c.Sync.CleanupInterval = Duration(24 * time.Hour)
	}
	if c.Sync.StaleRetentionDays == 0 {
		c.Sync.StaleRetentionDays = 90
	}
	if c.Sync.SnapshotTTL == 0 {
		c.Sync.SnapshotTTL = Duration(48 * time.Hour)
	}
}
