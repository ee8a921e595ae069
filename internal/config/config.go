// Package config loads kinstory settings. Defaults are overlaid by an
// optional YAML file named in KINSTORY_CONFIG_FILE, which is in turn
// overlaid by KINSTORY_ environment variables. A .env file in the working
// directory is loaded into the environment first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for kinstory.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Lock       LockConfig       `yaml:"lock"`
	Security   SecurityConfig   `yaml:"security"`
	Backup     BackupConfig     `yaml:"backup"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // default: 6464
	Host string `yaml:"host"` // default: 127.0.0.1

	// RateLimitRPS and RateBurst bound requests per client (defaults: 20, 40).
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	RateBurst    int     `yaml:"rate_burst"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 30s

	// EnableMetrics mounts /metrics (default: true).
	EnableMetrics bool `yaml:"enable_metrics"`
}

// StorageConfig selects and locates the relational store.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // sqlite or postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // sqlite directory (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // required for postgres
}

// ExtractionConfig selects the entity extraction backend.
type ExtractionConfig struct {
	Provider string        `yaml:"provider"` // none, hugot, ollama, openai (default: none)
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`   // default: 30s
	ModelDir string        `yaml:"model_dir"` // hugot downloads (default: ./models)

	// PersonLabels are the mention labels treated as people (default: PER).
	PersonLabels []string `yaml:"person_labels"`

	BreakerMaxFailures int           `yaml:"breaker_max_failures"` // default: 3
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`      // default: 30s
}

// LockConfig configures owner-scoped resolution locking.
type LockConfig struct {
	// RedisURL enables the Redis locker, e.g. redis://localhost:6379/0.
	// Empty means an in-process lock.
	RedisURL  string        `yaml:"redis_url"`
	TTL       time.Duration `yaml:"ttl"`        // default: 10s
	KeyPrefix string        `yaml:"key_prefix"` // default: kinstory:lock:
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	Mode     string `yaml:"mode"` // development or production (default: development)
	APIToken string `yaml:"api_token"`
}

// BackupConfig schedules sqlite backups. Postgres deployments back up with
// their own tooling.
type BackupConfig struct {
	Interval time.Duration `yaml:"interval"` // 0 disables scheduled backups (default: 0)
	Dir      string        `yaml:"dir"`      // default: {data_path}/backups
	Verify   bool          `yaml:"verify"`   // integrity check each backup (default: true)

	KeepHourly  int `yaml:"keep_hourly"`  // default: 24
	KeepDaily   int `yaml:"keep_daily"`   // default: 7
	KeepWeekly  int `yaml:"keep_weekly"`  // default: 4
	KeepMonthly int `yaml:"keep_monthly"` // default: 12
}

// LogConfig controls the logger.
type LogConfig struct {
	Env string `yaml:"env"` // development or production (default: development)
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("KINSTORY_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         6464,
			Host:         "127.0.0.1",
			RateLimitRPS: 20,
			RateBurst:    40,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,

			EnableMetrics: true,
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		Extraction: ExtractionConfig{
			Provider:           "none",
			Timeout:            30 * time.Second,
			ModelDir:           "./models",
			PersonLabels:       []string{"PER"},
			BreakerMaxFailures: 3,
			BreakerTimeout:     30 * time.Second,
		},
		Lock: LockConfig{
			TTL:       10 * time.Second,
			KeyPrefix: "kinstory:lock:",
		},
		Security: SecurityConfig{
			Mode: "development",
		},
		Backup: BackupConfig{
			Verify:      true,
			KeepHourly:  24,
			KeepDaily:   7,
			KeepWeekly:  4,
			KeepMonthly: 12,
		},
		Log: LogConfig{
			Env: "development",
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("KINSTORY_PORT", c.Server.Port)
	c.Server.Host = getEnv("KINSTORY_HOST", c.Server.Host)
	c.Server.RateLimitRPS = getEnvFloat("KINSTORY_RATE_LIMIT_RPS", c.Server.RateLimitRPS)
	c.Server.RateBurst = getEnvInt("KINSTORY_RATE_BURST", c.Server.RateBurst)
	c.Server.ReadTimeout = getEnvDuration("KINSTORY_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("KINSTORY_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.EnableMetrics = getEnvBool("KINSTORY_ENABLE_METRICS", c.Server.EnableMetrics)

	c.Storage.Engine = getEnv("KINSTORY_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataPath = getEnv("KINSTORY_DATA_PATH", c.Storage.DataPath)
	c.Storage.PostgresDSN = getEnv("KINSTORY_POSTGRES_DSN", c.Storage.PostgresDSN)

	c.Extraction.Provider = getEnv("KINSTORY_EXTRACTION_PROVIDER", c.Extraction.Provider)
	c.Extraction.Model = getEnv("KINSTORY_EXTRACTION_MODEL", c.Extraction.Model)
	c.Extraction.BaseURL = getEnv("KINSTORY_EXTRACTION_URL", c.Extraction.BaseURL)
	c.Extraction.APIKey = getEnv("KINSTORY_EXTRACTION_API_KEY", c.Extraction.APIKey)
	c.Extraction.Timeout = getEnvDuration("KINSTORY_EXTRACTION_TIMEOUT", c.Extraction.Timeout)
	c.Extraction.ModelDir = getEnv("KINSTORY_MODEL_DIR", c.Extraction.ModelDir)
	if v := os.Getenv("KINSTORY_PERSON_LABELS"); v != "" {
		c.Extraction.PersonLabels = splitList(v)
	}
	c.Extraction.BreakerMaxFailures = getEnvInt("KINSTORY_BREAKER_MAX_FAILURES", c.Extraction.BreakerMaxFailures)
	c.Extraction.BreakerTimeout = getEnvDuration("KINSTORY_BREAKER_TIMEOUT", c.Extraction.BreakerTimeout)

	c.Lock.RedisURL = getEnv("KINSTORY_REDIS_URL", c.Lock.RedisURL)
	c.Lock.TTL = getEnvDuration("KINSTORY_LOCK_TTL", c.Lock.TTL)
	c.Lock.KeyPrefix = getEnv("KINSTORY_LOCK_PREFIX", c.Lock.KeyPrefix)

	c.Security.Mode = getEnv("KINSTORY_SECURITY_MODE", c.Security.Mode)
	c.Security.APIToken = getEnv("KINSTORY_API_TOKEN", c.Security.APIToken)

	c.Backup.Interval = getEnvDuration("KINSTORY_BACKUP_INTERVAL", c.Backup.Interval)
	c.Backup.Dir = getEnv("KINSTORY_BACKUP_DIR", c.Backup.Dir)
	c.Backup.Verify = getEnvBool("KINSTORY_BACKUP_VERIFY", c.Backup.Verify)

	c.Log.Env = getEnv("KINSTORY_ENV", c.Log.Env)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	switch c.Storage.Engine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres engine requires KINSTORY_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage engine %q", c.Storage.Engine))
	}
	switch c.Extraction.Provider {
	case "none", "hugot", "ollama":
	case "openai":
		if c.Extraction.APIKey == "" {
			errs = append(errs, errors.New("openai extraction requires KINSTORY_EXTRACTION_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown extraction provider %q", c.Extraction.Provider))
	}
	if len(c.Extraction.PersonLabels) == 0 {
		errs = append(errs, errors.New("at least one person label is required"))
	}
	switch c.Security.Mode {
	case "development":
	case "production":
		if c.Security.APIToken == "" {
			errs = append(errs, errors.New("production mode requires KINSTORY_API_TOKEN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown security mode %q", c.Security.Mode))
	}
	if c.Backup.Interval < 0 {
		errs = append(errs, fmt.Errorf("backup interval %s is negative", c.Backup.Interval))
	}
	if c.Backup.Interval > 0 && c.Storage.Engine != "sqlite" {
		errs = append(errs, errors.New("scheduled backups require the sqlite engine"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsProduction reports whether production security is on.
func (c *Config) IsProduction() bool {
	return c.Security.Mode == "production"
}

// BackupDir returns the configured backup directory or its default.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return filepath.Join(c.Storage.DataPath, "backups")
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool recognizes true/1/yes and false/0/no, case-insensitively.
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

// getEnvDuration parses values like "5s" or "1m30s".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
