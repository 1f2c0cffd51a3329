package circuitbreaker

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Profile groups dependencies that share breaker tuning
type Profile string

const (
	ProfileHTTP     Profile = "http"
	ProfileRedis    Profile = "redis"
	ProfileDatabase Profile = "db"
)

var profileDefaults = map[Profile]Config{
	// model services, qdrant and web search: fail fast, retry soon
	ProfileHTTP: {FailureThreshold: 3, SuccessThreshold: 2, MaxRequests: 5, Timeout: 15 * time.Second, Interval: 30 * time.Second},
	ProfileRedis: {FailureThreshold: 3, SuccessThreshold: 2, MaxRequests: 5, Timeout: 15 * time.Second, Interval: 30 * time.Second},
	// the archive is written off the request path, so it can wait longer between trials
	ProfileDatabase: {FailureThreshold: 5, SuccessThreshold: 2, MaxRequests: 3, Timeout: 30 * time.Second, Interval: time.Minute},
}

// ConfigFor returns the profile defaults with TAILOR_CB_<PROFILE>_* overrides applied, e.g.
// TAILOR_CB_HTTP_FAILURE_THRESHOLD=5 or TAILOR_CB_REDIS_TIMEOUT=30s. Unparseable values are
// ignored.
func ConfigFor(p Profile) Config {
	cfg, ok := profileDefaults[p]
	if !ok {
		cfg = DefaultConfig()
	}
	prefix := "TAILOR_CB_" + strings.ToUpper(string(p)) + "_"
	envUint32(prefix+"FAILURE_THRESHOLD", &cfg.FailureThreshold)
	envUint32(prefix+"SUCCESS_THRESHOLD", &cfg.SuccessThreshold)
	envUint32(prefix+"MAX_REQUESTS", &cfg.MaxRequests)
	envDuration(prefix+"TIMEOUT", &cfg.Timeout)
	envDuration(prefix+"INTERVAL", &cfg.Interval)
	return cfg
}

func envUint32(key string, dst *uint32) {
	if raw, ok := os.LookupEnv(key); ok {
		if v, err := cast.ToUint32E(raw); err == nil {
			*dst = v
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if raw, ok := os.LookupEnv(key); ok {
		if v, err := cast.ToDurationE(raw); err == nil {
			*dst = v
		}
	}
}
