package config

import (
	"time"
)

const (
	baseURLVar          = "DOCS_BASE_URL"
	requestTimeoutVar   = "DOCS_REQUEST_TIMEOUT"
	cacheTTLVar         = "DOCS_CACHE_TTL"
	refreshLookaheadVar = "DOCS_REFRESH_LOOKAHEAD"
	watchIntervalVar    = "DOCS_WATCH_INTERVAL"
)

// ClientConfig exposes the tunable knobs of the request pipeline. The
// lookahead and TTL values are deployment choices, not invariants, so they
// are env-configurable with conservative defaults.
type ClientConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetCacheTTL() time.Duration
	GetRefreshLookahead() time.Duration
	GetWatchInterval() time.Duration
}

type Client struct{}

var _ ClientConfig = Client{}

func (Client) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8000")
}

func (Client) GetRequestTimeout() time.Duration {
	return getDuration(requestTimeoutVar, 30*time.Second)
}

// GetCacheTTL returns the default freshness window for memoized GET
// responses.
func (Client) GetCacheTTL() time.Duration {
	return getDuration(cacheTTLVar, 5*time.Minute)
}

// GetRefreshLookahead returns how close to the access token's expiry a
// request will trigger a preemptive refresh instead of risking a 401.
func (Client) GetRefreshLookahead() time.Duration {
	return getDuration(refreshLookaheadVar, 30*time.Second)
}

func (Client) GetWatchInterval() time.Duration {
	return getDuration(watchIntervalVar, 15*time.Second)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
