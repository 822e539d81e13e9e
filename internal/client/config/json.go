package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/otaverifier/internal/flagx"
	"github.com/dmitrijs2005/otaverifier/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// distinguish "absent" from zero values so a partial file only overrides
// what it names.
type JsonConfig struct {
	BaseURL             *string         `json:"base_url"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	HistoryDSN          *string         `json:"history_dsn"`
	S3Endpoint          *string         `json:"s3_endpoint"`
	ReleasePrefix       *string         `json:"release_prefix"`
	StrictVersion       *bool           `json:"strict_version"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without either flag it does nothing. Read and unmarshal
// errors panic; the caller decides whether to recover.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	if jc.BaseURL != nil {
		cfg.BaseURL = *jc.BaseURL
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.HistoryDSN != nil {
		cfg.HistoryDSN = *jc.HistoryDSN
	}
	if jc.S3Endpoint != nil {
		cfg.S3Endpoint = *jc.S3Endpoint
	}
	if jc.ReleasePrefix != nil {
		cfg.ReleasePrefix = *jc.ReleasePrefix
	}
	if jc.StrictVersion != nil {
		cfg.StrictVersion = *jc.StrictVersion
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
}
