package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

type Logging struct {
	JSONFormat bool   `yaml:"json_format" env:"FILELY_LOG_JSON"`
	Level      string `yaml:"level" env:"FILELY_LOG_LEVEL" env-default:"info"`
}

type API struct {
	Port                int    `yaml:"port" env:"FILELY_API_PORT" env-default:"5000"`
	HealthCheckFailFile string `yaml:"healthcheck_fail_file"`
}

type Prometheus struct {
	Enabled bool `yaml:"enabled" env:"FILELY_PROMETHEUS_ENABLED"`
}

// Uploads bounds the upload and redemption paths. AllowedExpiryMinutes is the
// fixed set of expiry durations a client may pick; anything else is rejected.
type Uploads struct {
	MaxFileSizeBytes     int64 `yaml:"max_file_size_bytes" env-default:"52428800"`
	AllowedExpiryMinutes []int `yaml:"allowed_expiry_minutes"`
	SignedURLTTLSeconds  int   `yaml:"signed_url_ttl_seconds" env-default:"60"`
	CodeAttempts         int   `yaml:"code_attempts" env-default:"10"`
	StoreTimeoutSeconds  int   `yaml:"store_timeout_seconds" env-default:"10"`
}

type Reclaimer struct {
	Enabled             bool `yaml:"enabled" env:"FILELY_RECLAIMER_ENABLED" env-default:"true"`
	IntervalSeconds     int  `yaml:"interval_seconds" env-default:"3600"`
	BatchSize           int  `yaml:"batch_size" env-default:"500"`
	StoreTimeoutSeconds int  `yaml:"store_timeout_seconds" env-default:"30"`
}

type Database struct {
	Type     string         `yaml:"type"`
	Settings map[string]any `yaml:"settings"`
}

type BlobStore struct {
	Type     string         `yaml:"type"`
	Settings map[string]any `yaml:"settings"`
}

type FilelyConfig struct {
	Logging    Logging    `yaml:"logging"`
	API        API        `yaml:"api"`
	Uploads    Uploads    `yaml:"uploads"`
	Reclaimer  Reclaimer  `yaml:"reclaimer"`
	Database   Database   `yaml:"database"`
	BlobStore  BlobStore  `yaml:"blob_store"`
	Prometheus Prometheus `yaml:"prometheus"`
}

func Load(filePath string) (FilelyConfig, error) {
	var conf FilelyConfig
	if err := cleanenv.ReadConfig(filePath, &conf); err != nil {
		return conf, err
	}

	if len(conf.Uploads.AllowedExpiryMinutes) == 0 {
		conf.Uploads.AllowedExpiryMinutes = []int{5, 10, 20, 30, 60}
	}

	return conf, nil
}
