// Package config loads runtime configuration for the uplink CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the collector API
//	-l string   base URL of the auth service (empty: collector host)
//	-u string   login name
//	-d string   sqlite database file
//	-t int      per-request HTTP timeout (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so values can be
// either strings like "30s" or integer nanoseconds:
//
//	{
//	  "collector_url": "https://collector.example.com/api/v4",
//	  "auth_url": "https://auth.example.com/api/v1",
//	  "username": "alice",
//	  "database_path": "capture.db",
//	  "request_timeout": "30s"
//	}
//
// Primary API
//
//   - type Config                     — holds collector, auth, database and timeout settings
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values. The login password is never part
// of the configuration, the CLI prompts for it.
package config
