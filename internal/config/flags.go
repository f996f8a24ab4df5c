package config

import (
	"flag"
	"os"
	"time"

	"github.com/movelog/uplink/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the collector API (default from Config)
//	-l string   base URL of the auth service (default from Config)
//	-u string   login name (default from Config)
//	-d string   sqlite database file (default from Config)
//	-t int      per-request HTTP timeout in seconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-l", "-u", "-d", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.CollectorURL, "a", cfg.CollectorURL, "base URL of the collector API")
	fs.StringVar(&cfg.AuthURL, "l", cfg.AuthURL, "base URL of the auth service (empty: collector host)")
	fs.StringVar(&cfg.Username, "u", cfg.Username, "login name")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "sqlite database file")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
