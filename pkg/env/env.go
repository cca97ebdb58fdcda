package env

import (
	"os"
	"strconv"
	"strings"
)

const (
	// LogFormatKey switches the logger between json and console output.
	LogFormatKey  = "LOG_FORMAT"
	LogNoColorKey = "LOG_NO_COLOR"
	WorkerIDKey   = "WORKER_ID"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// GetBool parses a boolean environment variable, returning fallback when unset or malformed.
func GetBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
