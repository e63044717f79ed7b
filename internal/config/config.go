package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	RedisURL       string
	DBPath         string
	UploadRoot     string
	ReportDir      string
	OpsAddr        string
	MergeBatchSize int
	PopTimeout     time.Duration
	MockMode       bool
	Debug          bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	cfg.RedisURL = getEnv("VULNBRIDGE_REDIS", "redis://localhost:6379/0")
	cfg.DBPath = getEnv("VULNBRIDGE_DB", getDefaultDBPath())
	cfg.UploadRoot = getEnv("VULNBRIDGE_UPLOADS", "uploads")
	cfg.ReportDir = getEnv("VULNBRIDGE_REPORTS", "reports")
	cfg.OpsAddr = getEnv("VULNBRIDGE_ADDR", ":8080")
	cfg.MergeBatchSize = getEnvInt("VULNBRIDGE_BATCH", 100)
	cfg.MockMode = getEnvBool("VULNBRIDGE_MOCK", false)

	popTimeout := getEnvInt("VULNBRIDGE_POP_TIMEOUT", 5)

	// Command Line Flags (Override Env)
	flag.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis connection URL")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.StringVar(&cfg.UploadRoot, "uploads", cfg.UploadRoot, "Directory holding uploaded scan files")
	flag.StringVar(&cfg.ReportDir, "reports", cfg.ReportDir, "Directory for generated reports")
	flag.StringVar(&cfg.OpsAddr, "addr", cfg.OpsAddr, "Ops HTTP server address")
	flag.IntVar(&cfg.MergeBatchSize, "batch", cfg.MergeBatchSize, "Findings per merge transaction")
	flag.IntVar(&popTimeout, "pop-timeout", popTimeout, "Queue pop timeout in seconds")
	flag.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Run with an in-memory queue (no Redis)")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")

	flag.Parse()

	cfg.PopTimeout = time.Duration(popTimeout) * time.Second

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "vulnbridge.db"
	}

	dir := filepath.Join(home, ".vulnbridge")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .vulnbridge directory, using current dir: %v", err)
		return "vulnbridge.db"
	}

	return filepath.Join(dir, "vulnbridge.db")
}
