// Package config holds the runtime settings of the uplink CLI.
package config

import "time"

// Config holds runtime settings for the uplink synchronization client.
//
// Fields:
//   - CollectorURL: base URL of the collector API; the measurements resource
//     is resolved relative to it.
//   - AuthURL: base URL of the auth service. Empty means the collector host
//     also serves the login endpoint.
//   - Username: login name used to obtain bearer tokens.
//   - DatabasePath: sqlite file holding measurements and upload sessions.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	CollectorURL   string
	AuthURL        string
	Username       string
	DatabasePath   string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.CollectorURL = "https://localhost:8443/api/v4"
	c.AuthURL = ""
	c.Username = ""
	c.DatabasePath = "capture.db"
	c.RequestTimeout = 60 * time.Second
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
