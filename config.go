package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	connectionStringTemplate = "mongodb://%s:%s@%s"
	// mongoose falls back to this database when the URI names none
	defaultDatabase   = "test"
	metricsDisabled   = "off"
	defaultPort       = "5000"
	defaultMetrics    = "5001"
	defaultCollection = "todos"
)

// Config holds everything serve needs. Zero durations mean the defaults.
type Config struct {
	Port                   string `toml:"port"`
	MetricsPort            string `toml:"metrics_port"`
	MongoURI               string `toml:"mongo_uri"`
	Database               string `toml:"database"`
	Collection             string `toml:"collection"`
	SentryDSN              string `toml:"sentry_dsn"`
	LogLevel               string `toml:"log_level"`
	LogFormat              string `toml:"log_format"`
	ConnectTimeoutSeconds  int    `toml:"connect_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`

	ConnectTimeout  time.Duration `toml:"-"`
	ShutdownTimeout time.Duration `toml:"-"`
}

func defaultConfig() Config {
	return Config{
		Port:                   defaultPort,
		MetricsPort:            defaultMetrics,
		Collection:             defaultCollection,
		LogLevel:               "info",
		LogFormat:              "text",
		ConnectTimeoutSeconds:  5,
		ShutdownTimeoutSeconds: 10,
	}
}

// LoadConfig reads defaults, then the optional TOML file at path, then the environment.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.Database = getEnv("MONGO_DATABASE", cfg.Database)
	cfg.Collection = getEnv("MONGO_COLLECTION", cfg.Collection)
	cfg.SentryDSN = getEnv("SENTRY_DSN", cfg.SentryDSN)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.ConnectTimeoutSeconds, err = getEnvAsInt("MONGO_CONNECT_TIMEOUT_SECONDS", cfg.ConnectTimeoutSeconds); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeoutSeconds, err = getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", cfg.ShutdownTimeoutSeconds); err != nil {
		return cfg, err
	}

	if cfg.MongoURI == "" && os.Getenv("MONGODB_ENDPOINT") != "" {
		cfg.MongoURI = fmt.Sprintf(connectionStringTemplate,
			os.Getenv("MONGODB_USERNAME"), os.Getenv("MONGODB_PASSWORD"), os.Getenv("MONGODB_ENDPOINT"))
	}
	if cfg.Database == "" {
		cfg.Database = databaseFromURI(cfg.MongoURI)
	}

	cfg.ConnectTimeout = time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	cfg.ShutdownTimeout = time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.Collection == "" {
		return fmt.Errorf("MONGO_COLLECTION must not be empty")
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("MONGO_CONNECT_TIMEOUT_SECONDS must be greater than 0")
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be greater than 0")
	}
	return nil
}

// MetricsEnabled reports whether the metrics listener should run.
func (cfg Config) MetricsEnabled() bool {
	return cfg.MetricsPort != "" && !strings.EqualFold(cfg.MetricsPort, metricsDisabled)
}

// configureLogging applies level and format to the standard logrus logger.
func configureLogging(cfg Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func databaseFromURI(uri string) string {
	if uri == "" {
		return defaultDatabase
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return defaultDatabase
	}
	return cs.Database
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) (int, error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid integer value for %s: %q", key, v)
		}
		return i, nil
	}
	return defaultVal, nil
}
