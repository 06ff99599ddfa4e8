package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Engine   EngineConfig
	Admin    AdminConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// EngineConfig holds the IRR engine tuning knobs.
type EngineConfig struct {
	// Workers bounds the computation worker pool. Independent fund-level
	// computations run in parallel up to this limit.
	Workers int

	// NewtonMaxIter caps Newton-Raphson iterations before the bisection fallback.
	NewtonMaxIter int

	// BisectMaxIter caps bisection iterations before an entity is marked failed.
	BisectMaxIter int

	// RefreshCron is the cron spec for the stale/failed refresh sweep.
	// Empty disables the sweep.
	RefreshCron string

	// ComputeWait is how long getIRR waits for an in-flight computation
	// before answering with a pending status, in milliseconds.
	ComputeWaitMS int
}

// AdminConfig holds configuration for the administrative endpoints.
type AdminConfig struct {
	APIKey string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/irr_engine.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Engine: EngineConfig{
			Workers:       getEnvInt("ENGINE_WORKERS", 8),
			NewtonMaxIter: getEnvInt("ENGINE_NEWTON_MAX_ITER", 100),
			BisectMaxIter: getEnvInt("ENGINE_BISECT_MAX_ITER", 200),
			RefreshCron:   getEnv("ENGINE_REFRESH_CRON", "0 3 * * *"),
			ComputeWaitMS: getEnvInt("ENGINE_COMPUTE_WAIT_MS", 2000),
		},
		Admin: AdminConfig{
			APIKey: getEnv("ADMIN_API_KEY", ""),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value.
// Unparseable values fall back to the default rather than failing startup.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
