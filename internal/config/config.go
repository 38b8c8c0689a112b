package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/vrbourque/prediction-metrics/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Evaluation EvaluationConfig
	Paths      PathConfig
	Logging    LoggingConfig
}

// EvaluationConfig holds k-fold evaluation settings
type EvaluationConfig struct {
	Seed    uint64
	Splits  int
	Shuffle bool
	Outcome string
}

// PathConfig holds file system paths
type PathConfig struct {
	OutputDir string
	PlanFile  string
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string
	Development bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	seed, err := getEnvUintOrDefault("PM_SEED", 123)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Evaluation: *loadEvaluationConfig(seed),
		Paths:      *loadPathConfig(),
		Logging:    *loadLoggingConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadEvaluationConfig(seed uint64) *EvaluationConfig {
	return &EvaluationConfig{
		Seed:    seed,
		Splits:  getEnvIntOrDefault("PM_SPLITS", 10),
		Shuffle: getEnvBoolOrDefault("PM_SHUFFLE", true),
		Outcome: getEnvOrDefault("PM_OUTCOME", "ID_binary"),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		OutputDir: getEnvOrDefault("PM_OUTPUT_DIR", "."),
		PlanFile:  getEnvOrDefault("PM_PLAN_FILE", ""),
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:       strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Development: getEnvBoolOrDefault("LOG_DEVELOPMENT", false),
	}
}

func validateConfig(config *Config) error {
	if config.Evaluation.Splits < 2 {
		return errors.ConfigInvalid("PM_SPLITS must be at least 2")
	}
	if strings.TrimSpace(config.Evaluation.Outcome) == "" {
		return errors.ConfigInvalid("PM_OUTCOME is required")
	}
	if config.Paths.OutputDir == "" {
		return errors.ConfigInvalid("output directory is required")
	}
	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.ConfigInvalid("LOG_LEVEL must be one of debug, info, warn, error")
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

// getEnvUintOrDefault fails on malformed values instead of falling back.
func getEnvUintOrDefault(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be a non-negative integer")
	}
	return parsed, nil
}
