package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config with optional fields so a file only overrides
// the keys it sets. Durations are written as strings ("10s").
type fileConfig struct {
	Queue struct {
		Capacity *int `yaml:"capacity" toml:"capacity"`
	} `yaml:"queue" toml:"queue"`
	Channel struct {
		Path   *string `yaml:"path" toml:"path"`
		Create *bool   `yaml:"create" toml:"create"`
		Grace  *string `yaml:"grace" toml:"grace"`
	} `yaml:"channel" toml:"channel"`
	Sinks struct {
		PH          *string `yaml:"ph" toml:"ph"`
		Temperature *string `yaml:"temperature" toml:"temperature"`
	} `yaml:"sinks" toml:"sinks"`
	Thresholds struct {
		PHLow           *float64 `yaml:"ph_low" toml:"ph_low"`
		PHHigh          *float64 `yaml:"ph_high" toml:"ph_high"`
		TemperatureLow  *float64 `yaml:"temperature_low" toml:"temperature_low"`
		TemperatureHigh *float64 `yaml:"temperature_high" toml:"temperature_high"`
	} `yaml:"thresholds" toml:"thresholds"`
	Classifier struct {
		Strict *bool `yaml:"strict" toml:"strict"`
	} `yaml:"classifier" toml:"classifier"`
	Logging struct {
		Level       *string `yaml:"level" toml:"level"`
		Development *bool   `yaml:"development" toml:"development"`
	} `yaml:"logging" toml:"logging"`
	Ops struct {
		Address *string `yaml:"address" toml:"address"`
	} `yaml:"ops" toml:"ops"`
}

// LoadFile overlays a YAML (.yaml, .yml) or TOML (.toml) file onto cfg.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("%w: unsupported config file extension %q", ErrInvalid, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	setInt(&cfg.Queue.Capacity, fc.Queue.Capacity)

	setString(&cfg.Channel.Path, fc.Channel.Path)
	setBool(&cfg.Channel.Create, fc.Channel.Create)
	if fc.Channel.Grace != nil {
		grace, err := time.ParseDuration(*fc.Channel.Grace)
		if err != nil {
			return fmt.Errorf("%w: channel.grace: %v", ErrInvalid, err)
		}
		cfg.Channel.Grace = grace
	}

	setString(&cfg.Sinks.PH, fc.Sinks.PH)
	setString(&cfg.Sinks.Temperature, fc.Sinks.Temperature)

	setFloat(&cfg.Thresholds.PHLow, fc.Thresholds.PHLow)
	setFloat(&cfg.Thresholds.PHHigh, fc.Thresholds.PHHigh)
	setFloat(&cfg.Thresholds.TemperatureLow, fc.Thresholds.TemperatureLow)
	setFloat(&cfg.Thresholds.TemperatureHigh, fc.Thresholds.TemperatureHigh)

	setBool(&cfg.Classifier.Strict, fc.Classifier.Strict)

	setString(&cfg.Logging.Level, fc.Logging.Level)
	setBool(&cfg.Logging.Development, fc.Logging.Development)

	setString(&cfg.Ops.Address, fc.Ops.Address)
	return nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
