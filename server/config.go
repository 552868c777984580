package server

import (
	"os"
	"strconv"
	"time"
)

// Config holds the relay server settings.
type Config struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string
	// MaxLineSize caps the length of one inbound line in bytes.
	MaxLineSize int
	// ShutdownTimeout bounds how long Shutdown waits for in-flight
	// connection handlers to exit.
	ShutdownTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxLineSize:     64 * 1024,
		ShutdownTimeout: 5 * time.Second,
	}
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv builds a Config from environment variables,
// falling back to defaults for anything unset or unparseable.
// Recognized variables: SERVER_ADDR, MAX_LINE_SIZE (bytes),
// SHUTDOWN_TIMEOUT (seconds).
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	if maxSize := os.Getenv("MAX_LINE_SIZE"); maxSize != "" {
		cfg.MaxLineSize = parseIntValue(maxSize, cfg.MaxLineSize)
	}

	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}

	return &cfg
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
