package config

import "time"

// Config holds runtime settings for the OTA bundle uploader CLI.
//
// Fields:
//   - BaseURL: root URL of the OTA backend (no trailing slash needed).
//   - RequestTimeout: per-request HTTP timeout; 0 leaves the transport default.
//   - OnlineCheckInterval: how often the client probes backend reachability.
//   - HistoryDSN: SQLite DSN of the local upload history.
//   - S3Endpoint: optional S3-compatible endpoint for release listing.
//   - ReleasePrefix: object key prefix of released bundles, followed by the version.
//   - StrictVersion: require versions to be semantic versions.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	BaseURL             string
	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration
	HistoryDSN          string
	S3Endpoint          string
	ReleasePrefix       string
	StrictVersion       bool
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8000"
	c.RequestTimeout = 0
	c.OnlineCheckInterval = 5 * time.Second
	c.HistoryDSN = "uploads.db"
	c.S3Endpoint = ""
	c.ReleasePrefix = "RZG2L_Release-"
	c.StrictVersion = false
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
