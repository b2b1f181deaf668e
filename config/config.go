// Package config loads schedulerd's runtime configuration from the
// environment, in the teacher's plain os.Getenv/fmt.Sscanf style rather
// than a config-file library.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/watlab/autocontrol/scheduler"
)

// Config is schedulerd's top-level configuration.
type Config struct {
	// StoreBackend selects the task-store implementation: "memory" or
	// "postgres".
	StoreBackend string
	PostgresDSN  string

	HTTPAddr    string
	MetricsAddr string

	TimelineLimit int

	Scheduler scheduler.Config
}

// Load reads Config from the environment, defaulting anything unset.
func Load() Config {
	cfg := Config{
		StoreBackend:  envOr("AUTOCONTROL_STORE_BACKEND", "memory"),
		PostgresDSN:   os.Getenv("AUTOCONTROL_POSTGRES_DSN"),
		HTTPAddr:      envOr("AUTOCONTROL_HTTP_ADDR", ":8090"),
		MetricsAddr:   envOr("AUTOCONTROL_METRICS_ADDR", ":9090"),
		TimelineLimit: envOrInt("AUTOCONTROL_TIMELINE_LIMIT", 10000),
		Scheduler:     scheduler.DefaultConfig(),
	}

	if ms := envOrDuration("AUTOCONTROL_STATUS_TIMEOUT_MS", 0); ms > 0 {
		cfg.Scheduler.StatusTimeout = ms
	}
	if ms := envOrDuration("AUTOCONTROL_DISPATCH_TIMEOUT_MS", 0); ms > 0 {
		cfg.Scheduler.DispatchTimeout = ms
	}
	if ms := envOrDuration("AUTOCONTROL_SLEEP_SHORT_MS", 0); ms > 0 {
		cfg.Scheduler.SleepShort = ms
	}
	if ms := envOrDuration("AUTOCONTROL_SLEEP_LONG_MS", 0); ms > 0 {
		cfg.Scheduler.SleepLong = ms
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// envOrDuration reads a millisecond integer from key, returning def if
// unset, unparsable or not positive.
func envOrDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		var ms int
		if _, err := fmt.Sscanf(v, "%d", &ms); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
