// Package util provides environment variable parsing helpers shared across
// components.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// StringEnv returns the value of an environment variable or a fallback when
// unset.
func StringEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// BoolEnv parses a boolean environment variable with a default value.
// Accepts true/1/yes/on and false/0/no/off (case-insensitive); invalid values
// fall back to the default.
func BoolEnv(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("BoolEnv: invalid boolean value, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
}
