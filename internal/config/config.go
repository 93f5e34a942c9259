package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/emmett/voxrec/internal/audio"
)

// Config represents the application configuration
type Config struct {
	// Audio settings
	Audio struct {
		Device       string `yaml:"device"`
		Channels     int    `yaml:"channels"`
		SampleRate   int    `yaml:"sample_rate"`
		SampleFormat string `yaml:"sample_format"`
	} `yaml:"audio"`

	// Recording settings
	Recording struct {
		Duration     string        `yaml:"duration"`
		PollInterval time.Duration `yaml:"poll_interval"`
		Output       string        `yaml:"output"`
		Raw          bool          `yaml:"raw"`
	} `yaml:"recording"`

	// Output settings
	Output struct {
		Format string `yaml:"format"`
	} `yaml:"output"`

	// Log settings
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`

	// Server settings
	Server struct {
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	// Hotkey that stops a CLI recording early; empty disables it
	Hotkey string `yaml:"hotkey"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Audio defaults
	def := audio.DefaultFormat()
	cfg.Audio.Device = ""
	cfg.Audio.Channels = def.Channels
	cfg.Audio.SampleRate = def.SampleRate
	cfg.Audio.SampleFormat = def.SampleFormat.String()

	// Recording defaults
	cfg.Recording.Duration = "5s"
	cfg.Recording.PollInterval = 10 * time.Millisecond
	cfg.Recording.Output = "recording.wav"

	// Output defaults
	cfg.Output.Format = "text"

	// Log defaults
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.Log.MaxSizeMB = 10
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28

	// Server defaults
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 50051
	cfg.Server.MetricsAddr = ":9090"

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.voxrecrc > /etc/voxrec/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".voxrecrc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	systemConfigPath := "/etc/voxrec/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	return DefaultConfig(), nil
}

// Validate checks the values that cannot be fixed up later
func (c *Config) Validate() error {
	if _, err := c.AudioFormat(); err != nil {
		return err
	}
	if _, err := c.RecordingDuration(); err != nil {
		return err
	}
	if c.Recording.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative, got %s", c.Recording.PollInterval)
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	return nil
}

// AudioFormat returns the capture format described by the audio section
func (c *Config) AudioFormat() (audio.Format, error) {
	sf, err := audio.ParseSampleFormat(c.Audio.SampleFormat)
	if err != nil {
		return audio.Format{}, err
	}
	f := audio.Format{
		Channels:     c.Audio.Channels,
		SampleRate:   c.Audio.SampleRate,
		SampleFormat: sf,
	}
	if err := f.Validate(); err != nil {
		return audio.Format{}, err
	}
	return f, nil
}

// RecordingDuration parses the recording duration, which also accepts day
// and week units such as "1d2h"
func (c *Config) RecordingDuration() (time.Duration, error) {
	return ParseDuration(c.Recording.Duration)
}

// ParseDuration parses a non-negative recording duration
func ParseDuration(s string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative, got %s", s)
	}
	return d, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
