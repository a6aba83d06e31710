package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func GetEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	fmt.Printf("Environment variable %s not found, using default value: %s\n", key, defaultValue)
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			fmt.Printf("Environment variable %s is not a bool, using default value: %t\n", key, defaultValue)
			return defaultValue
		}
		return boolValue
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			fmt.Printf("Environment variable %s is not an int, using default value: %d\n", key, defaultValue)
			return defaultValue
		}
		return intValue
	}
	return defaultValue
}

func GetEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			fmt.Printf("Environment variable %s is not a number, using default value: %v\n", key, defaultValue)
			return defaultValue
		}
		return floatValue
	}
	return defaultValue
}

// GetEnvDuration accepts Go duration strings ("90s", "5m") and bare integers as seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := parseDuration(value)
		if err != nil {
			fmt.Printf("Environment variable %s is not a duration, using default value: %v\n", key, defaultValue)
			return defaultValue
		}
		return d
	}
	return defaultValue
}

// GetEnvDurationList parses a comma separated list such as "10s,30s,90s" or "10,30,90".
// Any malformed element makes the whole value fall back to the default.
func GetEnvDurationList(key string, defaultValue []time.Duration) []time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := parseDuration(p)
		if err != nil {
			fmt.Printf("Environment variable %s has invalid element %q, using default value: %v\n", key, p, defaultValue)
			return defaultValue
		}
		out = append(out, d)
	}
	return out
}

// GetEnvStringList splits a comma separated value and drops empty elements.
func GetEnvStringList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(value)
}
