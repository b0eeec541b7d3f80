package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bucket             string `mapstructure:"s3_bucket"`
	Region             string `mapstructure:"aws_region"`
	AccessKeyID        string `mapstructure:"aws_access_key_id"`
	SecretAccessKey    string `mapstructure:"aws_secret_access_key"`
	Endpoint           string `mapstructure:"s3_endpoint"`       // S3-compatible endpoint (MinIO etc.)
	ForcePathStyle     bool   `mapstructure:"s3_force_path_style"`
	DeleteLocal        bool   `mapstructure:"delete_local"`      // Remove recordings after upload
	UploadHLS          bool   `mapstructure:"upload_hls"`        // Enable the live-segment pipeline
	UploadRecordings   bool   `mapstructure:"upload_recordings"` // Enable the delayed recordings pipeline
	RecordingDelayMins int    `mapstructure:"recording_delay_minutes"`
	RecordingDelayRaw  string `mapstructure:"recording_delay"` // Overrides minutes when set, e.g. "90s"

	HLS        RootConfig `mapstructure:"-"`
	Recordings RootConfig `mapstructure:"-"`

	Port             int    `mapstructure:"port"`
	ConcurrencyLimit int    `mapstructure:"concurrency_limit"` // Max parallel live-segment uploads
	DBPath           string `mapstructure:"db_path"`
	LogFile          string `mapstructure:"log_file"`
	LogMaxSizeMB     int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups    int    `mapstructure:"log_max_backups"`
	Debug            bool   `mapstructure:"debug"`
}

// RootConfig describes one watched directory tree.
type RootConfig struct {
	Path               string
	Namespace          string
	StabilityThreshold time.Duration
	PollInterval       time.Duration
}

const (
	DefaultHLSRoot        = "/hls"
	DefaultRecordingsRoot = "/recordings"
)

// SetDefaults registers the defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("aws_region", "ap-northeast-2")
	v.SetDefault("delete_local", true)
	v.SetDefault("upload_hls", true)
	v.SetDefault("upload_recordings", true)
	v.SetDefault("recording_delay_minutes", 10)
	v.SetDefault("recording_delay", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_force_path_style", false)

	v.SetDefault("hls_root", DefaultHLSRoot)
	v.SetDefault("hls_namespace", "hls")
	v.SetDefault("hls_stability_threshold", "500ms")
	v.SetDefault("hls_poll_interval", "100ms")
	v.SetDefault("recordings_root", DefaultRecordingsRoot)
	v.SetDefault("recordings_namespace", "recordings")
	v.SetDefault("recordings_stability_threshold", "2s")
	v.SetDefault("recordings_poll_interval", "500ms")

	v.SetDefault("port", 3000)
	v.SetDefault("concurrency_limit", 5)
	v.SetDefault("db_path", "/var/lib/s3-uploader/state.db")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 50)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("debug", false)

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{"s3_bucket", "aws_access_key_id", "aws_secret_access_key"} {
		v.BindEnv(key) //nolint:errcheck
	}
	v.AutomaticEnv()
}

// Load reads the effective configuration out of v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var err error
	cfg.HLS, err = loadRoot(v, "hls")
	if err != nil {
		return nil, err
	}
	cfg.Recordings, err = loadRoot(v, "recordings")
	if err != nil {
		return nil, err
	}

	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = 5
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadRoot(v *viper.Viper, prefix string) (RootConfig, error) {
	rc := RootConfig{
		Path:      v.GetString(prefix + "_root"),
		Namespace: v.GetString(prefix + "_namespace"),
	}

	threshold, err := time.ParseDuration(v.GetString(prefix + "_stability_threshold"))
	if err != nil {
		return rc, fmt.Errorf("invalid %s_stability_threshold: %w", prefix, err)
	}
	poll, err := time.ParseDuration(v.GetString(prefix + "_poll_interval"))
	if err != nil {
		return rc, fmt.Errorf("invalid %s_poll_interval: %w", prefix, err)
	}
	rc.StabilityThreshold = threshold
	rc.PollInterval = poll
	return rc, nil
}

// RecordingDelay returns the configured delay before a recording is uploaded.
func (c *Config) RecordingDelay() time.Duration {
	if c.RecordingDelayRaw != "" {
		if d, err := time.ParseDuration(c.RecordingDelayRaw); err == nil {
			return d
		}
	}
	return time.Duration(c.RecordingDelayMins) * time.Minute
}

func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3_bucket is required")
	}
	if c.RecordingDelayRaw != "" {
		if _, err := time.ParseDuration(c.RecordingDelayRaw); err != nil {
			return fmt.Errorf("invalid recording_delay: %w", err)
		}
	}
	if c.RecordingDelay() <= 0 {
		return errors.New("recording delay must be positive")
	}
	if c.UploadHLS && c.HLS.Path == "" {
		return errors.New("hls_root is required when upload_hls is enabled")
	}
	if c.UploadRecordings && c.Recordings.Path == "" {
		return errors.New("recordings_root is required when upload_recordings is enabled")
	}
	return nil
}
