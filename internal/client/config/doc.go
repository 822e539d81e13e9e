// Package config loads runtime configuration for the OTA bundle uploader.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-u string   base URL of the OTA backend
//	-t int      HTTP request timeout in seconds (0 = transport default)
//	-i int      online status check interval (seconds)
//	-d string   upload history SQLite DSN
//	-s string   S3-compatible endpoint for release listing
//	-p string   release key prefix
//	-strict     require semantic versions
//	-l string   log level
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "30s"
// or integer nanoseconds. Keys that are absent keep their earlier value:
//
//	{
//	  "base_url": "http://10.0.0.5:8000",
//	  "request_timeout": "0s",
//	  "online_check_interval": "5s",
//	  "history_dsn": "uploads.db",
//	  "s3_endpoint": "",
//	  "release_prefix": "RZG2L_Release-",
//	  "strict_version": true,
//	  "log_level": "debug"
//	}
package config
