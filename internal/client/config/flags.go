package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/otaverifier/internal/flagx"
)

var knownFlags = []string{"-u", "-t", "-i", "-d", "-s", "-p", "-strict", "-l"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string   base URL of the OTA backend (e.g., "http://127.0.0.1:8000")
//	-t int      HTTP request timeout in seconds, 0 = transport default
//	-i int      online check interval in seconds
//	-d string   upload history SQLite DSN
//	-s string   S3-compatible endpoint for release listing
//	-p string   release object key prefix
//	-strict     require semantic versions
//	-l string   log level (debug, info, warn, error)
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgsWithBools, so -c/-config and unknown flags do not break
//     parsing.
//   - Duration flags are accepted as integers in seconds. They replace the
//     current value only when given, so finer JSON durations such as "500ms"
//     survive when the flag is absent.
func parseFlags(cfg *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgsWithBools(os.Args[1:], knownFlags, []string{"-strict"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BaseURL, "u", cfg.BaseURL, "base URL of the OTA backend")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "HTTP request timeout (in seconds, 0 = none)")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.HistoryDSN, "d", cfg.HistoryDSN, "upload history SQLite DSN")
	fs.StringVar(&cfg.S3Endpoint, "s", cfg.S3Endpoint, "S3-compatible endpoint for release listing")
	fs.StringVar(&cfg.ReleasePrefix, "p", cfg.ReleasePrefix, "release object key prefix")
	fs.BoolVar(&cfg.StrictVersion, "strict", cfg.StrictVersion, "require semantic versions")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
		}
	})
}
