package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
)

// Push transport names accepted in [push].transport.
const (
	TransportLog = "log"
	TransportFCM = "fcm"
)

// Config represents $RELAY_HOME/config.toml. Every field can be overridden
// through the RELAY_* environment variables named in the env tags.
type Config struct {
	DataDir  string         `toml:"data_dir" env:"RELAY_DATA_DIR"`
	HTTP     HTTPConfig     `toml:"http"     envPrefix:"RELAY_HTTP_"`
	Control  ControlConfig  `toml:"control"  envPrefix:"RELAY_CONTROL_"`
	Push     PushConfig     `toml:"push"     envPrefix:"RELAY_PUSH_"`
	Delivery DeliveryConfig `toml:"delivery" envPrefix:"RELAY_DELIVERY_"`
	Log      LogConfig      `toml:"log"      envPrefix:"RELAY_LOG_"`
}

// LogConfig configures the daemon logger.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"` // debug, info, warn, error
}

// HTTPConfig configures the public contact-sync and message API.
type HTTPConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
}

// ControlConfig configures the gRPC control socket used by relayctl.
type ControlConfig struct {
	Socket string `toml:"socket" env:"SOCKET"` // empty = <data_dir>/relayd.sock
}

// PushConfig selects the notification transport.
type PushConfig struct {
	Transport       string `toml:"transport"        env:"TRANSPORT"`
	CredentialsFile string `toml:"credentials_file" env:"CREDENTIALS_FILE"`
	ProjectID       string `toml:"project_id"       env:"PROJECT_ID"`
}

// DeliveryConfig tunes the message delivery worker and the redelivery sweep.
type DeliveryConfig struct {
	Workers             int           `toml:"workers"              env:"WORKERS"`
	Buffer              int           `toml:"buffer"               env:"BUFFER"`
	DedupeNotifications bool          `toml:"dedupe_notifications" env:"DEDUPE_NOTIFICATIONS"`
	SweepInterval       time.Duration `toml:"sweep_interval"       env:"SWEEP_INTERVAL"` // 0 disables the sweep
	SweepGrace          time.Duration `toml:"sweep_grace"          env:"SWEEP_GRACE"`
	SweepBatch          int           `toml:"sweep_batch"          env:"SWEEP_BATCH"`
	SweepMaxAttempts    int           `toml:"sweep_max_attempts"   env:"SWEEP_MAX_ATTEMPTS"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir: BaseDir(),
		HTTP:    HTTPConfig{Addr: "127.0.0.1:8088"},
		Log:     LogConfig{Level: "info"},
		Push:    PushConfig{Transport: TransportLog},
		Delivery: DeliveryConfig{
			Workers:             8,
			Buffer:              1024,
			DedupeNotifications: true,
			SweepGrace:          time.Minute,
			SweepBatch:          100,
			SweepMaxAttempts:    3,
		},
	}
}

// Load reads config from the given path on top of the defaults. Returns an
// error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve loads the config file when present, falls back to defaults when it
// is missing, then applies environment overrides and validates the result.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	switch c.Push.Transport {
	case TransportLog, TransportFCM:
	default:
		return fmt.Errorf("unknown push transport %q (want %q or %q)", c.Push.Transport, TransportLog, TransportFCM)
	}
	if c.Delivery.Workers < 1 {
		return fmt.Errorf("delivery.workers = %d, must be at least 1", c.Delivery.Workers)
	}
	if c.Delivery.Buffer < 1 {
		return fmt.Errorf("delivery.buffer = %d, must be at least 1", c.Delivery.Buffer)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Delivery.SweepInterval < 0 || c.Delivery.SweepGrace < 0 {
		return errors.New("delivery sweep durations must not be negative")
	}
	if c.Delivery.SweepInterval > 0 && c.Delivery.SweepBatch < 1 {
		return fmt.Errorf("delivery.sweep_batch = %d, must be at least 1", c.Delivery.SweepBatch)
	}
	if c.Delivery.SweepInterval > 0 && c.Delivery.SweepMaxAttempts < 1 {
		return fmt.Errorf("delivery.sweep_max_attempts = %d, must be at least 1", c.Delivery.SweepMaxAttempts)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
