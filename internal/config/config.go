// Package config loads the service configuration. Values are layered: struct defaults,
// then an optional YAML file, then a .env file, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"climate-records/pkg/database"
	"climate-records/pkg/logging"
)

// ConfigPathEnvVar names the environment variable holding the optional YAML file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultDatasetURL is the Our World in Data CO2 dataset the ingester reads by default.
const DefaultDatasetURL = "https://raw.githubusercontent.com/owid/co2-data/master/owid-co2-data.csv"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logging   LoggingConfig   `koanf:"logging"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Ingestion IngestionConfig `koanf:"ingestion"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Database        string        `koanf:"database"`
	SSLMode         string        `koanf:"sslmode"`
	Path            string        `koanf:"path"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	PoolMonitor     time.Duration `koanf:"pool_monitor"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// IngestionConfig controls the dataset fetch used by the bulk loader.
type IngestionConfig struct {
	SourceURL        string        `koanf:"source_url"`
	HTTPTimeout      time.Duration `koanf:"http_timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          database.DriverPostgres,
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "postgres",
			Database:        "climate",
			SSLMode:         "disable",
			Path:            "climate.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PoolMonitor:     30 * time.Second,
			AutoMigrate:     false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   time.Minute,
		},
		Ingestion: IngestionConfig{
			SourceURL:        DefaultDatasetURL,
			HTTPTimeout:      2 * time.Minute,
			FailureThreshold: 3,
			OpenTimeout:      30 * time.Second,
		},
	}
}

// envMappings maps lower-cased environment variable names to config paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"server_host":      "server.host",
	"server_port":      "server.port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"idle_timeout":     "server.idle_timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	"db_driver":             "database.driver",
	"db_host":               "database.host",
	"db_port":               "database.port",
	"db_user":               "database.user",
	"db_password":           "database.password",
	"db_name":               "database.database",
	"db_sslmode":            "database.sslmode",
	"db_path":               "database.path",
	"db_max_open_conns":     "database.max_open_conns",
	"db_max_idle_conns":     "database.max_idle_conns",
	"db_conn_max_lifetime":  "database.conn_max_lifetime",
	"db_conn_max_idle_time": "database.conn_max_idle_time",
	"db_pool_monitor":       "database.pool_monitor",
	"db_auto_migrate":       "database.auto_migrate",

	"log_level": "logging.level",

	"cors_allowed_origins": "cors.allowed_origins",

	"rate_limit_enabled":  "rate_limit.enabled",
	"rate_limit_requests": "rate_limit.requests",
	"rate_limit_window":   "rate_limit.window",

	"ingest_source_url":        "ingestion.source_url",
	"ingest_http_timeout":      "ingestion.http_timeout",
	"ingest_failure_threshold": "ingestion.failure_threshold",
	"ingest_open_timeout":      "ingestion.open_timeout",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// sliceConfigPaths are read from the environment as comma-separated lists.
var sliceConfigPaths = []string{
	"cors.allowed_origins",
}

// LoadConfig builds the configuration from defaults, CONFIG_PATH, .env and the environment.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return load(os.Getenv(ConfigPathEnvVar))
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case database.DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for %s", database.DriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be positive")
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max idle connections must be between 0 and %d", c.Database.MaxOpenConns)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit needs positive requests and window")
	}
	if c.Ingestion.HTTPTimeout <= 0 {
		return fmt.Errorf("ingestion http timeout must be positive")
	}
	return nil
}

// DBConfig converts the database section for pkg/database.
func (c *Config) DBConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		PoolMonitor:     c.Database.PoolMonitor,
	}
}

// LogLevel parses the configured level.
func (c *Config) LogLevel() logging.LogLevel {
	return logging.ParseLevel(c.Logging.Level)
}
