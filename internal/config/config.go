package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Ops      OpsConfig
	Solver   SolverConfig
	Data     DataConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects the
// in-memory analysis store.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// OpsConfig holds the metrics and profiling listener settings
type OpsConfig struct {
	Port    string
	Enabled bool
}

// SolverConfig holds the default analysis parameters
type SolverConfig struct {
	SampleSize int
	TimeFrame  spc.TimeFrame
	DateLayout string
	Workers    int
}

// DataConfig holds the default staging input
type DataConfig struct {
	File    string
	Dataset string
	Metrics []string
}

// Load reads .env if present, then configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from environment variables and validates it
func FromEnv() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Ops: OpsConfig{
			Port:    getEnvOrDefault("OPS_PORT", "6060"),
			Enabled: getEnvBoolOrDefault("OPS_ENABLED", true),
		},
		Data: DataConfig{
			File:    getEnvOrDefault("DATA_FILE", ""),
			Dataset: getEnvOrDefault("SPC_DATASET", "default"),
			Metrics: splitList(os.Getenv("SPC_METRICS")),
		},
	}

	solverConfig, err := loadSolverConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load solver configuration")
	}
	config.Solver = *solverConfig

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadSolverConfig() (*SolverConfig, error) {
	frame, err := spc.ParseTimeFrame(os.Getenv("SPC_TIME_FRAME"))
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	return &SolverConfig{
		SampleSize: getEnvIntOrDefault("SPC_SAMPLE_SIZE", spc.DefaultSampleSize),
		TimeFrame:  frame,
		DateLayout: getEnvOrDefault("SPC_DATE_LAYOUT", core.DayMonthYear),
		Workers:    getEnvIntOrDefault("SPC_WORKERS", runtime.NumCPU()),
	}, nil
}

func validateConfig(config *Config) error {
	if config.Solver.SampleSize <= 0 {
		return errors.ConfigInvalid("SPC_SAMPLE_SIZE must be positive")
	}
	if config.Solver.Workers <= 0 {
		return errors.ConfigInvalid("SPC_WORKERS must be positive")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
