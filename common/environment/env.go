// Package environment provides helpers for loading Shashin configuration from
// environment variables.
//
// Every helper reads one variable and falls back to a default. Required
// variables return an error instead of exiting, so the CLI decides how to
// report missing configuration.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StringOr returns the value of the named environment variable, or
// defaultValue if the variable is unset or empty.
func StringOr(name, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return defaultValue
}

// RequiredString returns the value of the named environment variable or an
// error naming the variable when it is unset or empty.
func RequiredString(name string) (string, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("required environment variable %q is not set", name)
	}
	return v, nil
}

// IntOr parses the named variable as a decimal integer. Unset, empty or
// malformed values yield defaultValue.
func IntOr(name string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// DurationOr parses the named variable as a time.Duration ("30s", "24h").
// Unset, empty or malformed values yield defaultValue.
func DurationOr(name string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// StringSliceOr parses the named variable as a comma-separated list, trimming
// whitespace and dropping empty elements. Returns defaultValue when nothing
// usable is left.
func StringSliceOr(name string, defaultValue []string) []string {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	var result []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
