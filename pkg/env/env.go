package env

import (
	"os"
	"strings"
	"time"
)

// Get returns the value of the environment variable.
// Returns empty string if the variable is not set.
func Get(key string) string {
	return os.Getenv(key)
}

// GetOrDefault returns the value of the environment variable.
// If the variable is not set, it returns the default value.
func GetOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDuration parses the variable as a time.Duration ("30s", "1m").
// Unset or unparsable values yield the default.
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// Key builds an environment variable name from parts: Key("db", "orders-rw", "dsn")
// is "DB_ORDERS_RW_DSN".
func Key(parts ...string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	upper := make([]string, len(parts))
	for i, p := range parts {
		upper[i] = strings.ToUpper(r.Replace(p))
	}
	return strings.Join(upper, "_")
}
