package config

import (
	"os"
	"strconv"

	"gomix/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Engine   EngineConfig
}

// DatabaseConfig holds database connection settings. An empty URL puts
// the server in in-memory mode (no persistence across restarts).
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// EngineConfig holds fitting and optimization defaults applied when a
// request leaves them unset.
type EngineConfig struct {
	Tolerance          float64
	MaxIterations      int
	ConditionThreshold float64
	Concurrency        int
	OptimizerRestarts  int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: loadServerConfig(),
	}

	engine, err := loadEngineConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load engine configuration")
	}
	config.Engine = *engine

	return config, nil
}

func loadServerConfig() ServerConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return ServerConfig{Port: port}
}

func loadEngineConfig() (*EngineConfig, error) {
	engine := &EngineConfig{
		Tolerance:          1e-8,
		MaxIterations:      1000,
		ConditionThreshold: 1e8,
		Concurrency:        4,
		OptimizerRestarts:  4,
	}

	if v := os.Getenv("ENGINE_TOLERANCE"); v != "" {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil || tol <= 0 {
			return nil, errors.ConfigInvalid("ENGINE_TOLERANCE must be a positive float")
		}
		engine.Tolerance = tol
	}
	if v := os.Getenv("ENGINE_MAX_ITERATIONS"); v != "" {
		iters, err := strconv.Atoi(v)
		if err != nil || iters < 1 {
			return nil, errors.ConfigInvalid("ENGINE_MAX_ITERATIONS must be a positive integer")
		}
		engine.MaxIterations = iters
	}
	if v := os.Getenv("ENGINE_CONDITION_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil || threshold <= 1 {
			return nil, errors.ConfigInvalid("ENGINE_CONDITION_THRESHOLD must be a float > 1")
		}
		engine.ConditionThreshold = threshold
	}
	if v := os.Getenv("ENGINE_CONCURRENCY"); v != "" {
		conc, err := strconv.Atoi(v)
		if err != nil || conc < 1 {
			return nil, errors.ConfigInvalid("ENGINE_CONCURRENCY must be a positive integer")
		}
		engine.Concurrency = conc
	}
	if v := os.Getenv("OPTIMIZER_RESTARTS"); v != "" {
		restarts, err := strconv.Atoi(v)
		if err != nil || restarts < 1 {
			return nil, errors.ConfigInvalid("OPTIMIZER_RESTARTS must be a positive integer")
		}
		engine.OptimizerRestarts = restarts
	}

	return engine, nil
}
