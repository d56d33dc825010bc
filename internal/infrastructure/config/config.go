package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the monitor configuration.
type Config struct {
	Queue      QueueConfig
	Channel    ChannelConfig
	Sinks      SinkConfig
	Thresholds ThresholdConfig
	Classifier ClassifierConfig
	Logging    LogConfig
	Ops        OpsConfig
}

// QueueConfig holds the capacity shared by both reading queues.
type QueueConfig struct {
	Capacity int `envconfig:"QUEUE_CAPACITY"`
}

// ChannelConfig holds the inbound named pipe settings.
type ChannelConfig struct {
	Path   string        `envconfig:"CHANNEL_PATH"`
	Create bool          `envconfig:"CHANNEL_CREATE"`
	Grace  time.Duration `envconfig:"CHANNEL_GRACE"`
}

// SinkConfig holds the output file paths.
type SinkConfig struct {
	PH          string `envconfig:"PH_FILE"`
	Temperature string `envconfig:"TEMPERATURE_FILE"`
}

// ThresholdConfig holds the normal ranges. Values on a bound alert.
type ThresholdConfig struct {
	PHLow           float64 `envconfig:"PH_LOW"`
	PHHigh          float64 `envconfig:"PH_HIGH"`
	TemperatureLow  float64 `envconfig:"TEMPERATURE_LOW"`
	TemperatureHigh float64 `envconfig:"TEMPERATURE_HIGH"`
}

// ClassifierConfig pins float parsing strictness.
type ClassifierConfig struct {
	Strict bool `envconfig:"CLASSIFIER_STRICT"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL"`
	Development bool   `envconfig:"LOG_DEV"`
}

// OpsConfig holds the optional health/metrics HTTP listener. Empty disables it.
type OpsConfig struct {
	Address string `envconfig:"OPS_ADDR"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Queue: QueueConfig{
			Capacity: 10,
		},
		Channel: ChannelConfig{
			Path:   "/tmp/monisenso.pipe",
			Create: true,
			Grace:  10 * time.Second,
		},
		Sinks: SinkConfig{
			PH:          "pH-data.txt",
			Temperature: "temperature-data.txt",
		},
		Thresholds: ThresholdConfig{
			PHLow:           6.0,
			PHHigh:          8.0,
			TemperatureLow:  20,
			TemperatureHigh: 31.6,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Load builds configuration from defaults, an optional file and the environment,
// in that order of precedence (later wins).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration before any resource is created.
func (c *Config) Validate() error {
	switch {
	case c.Queue.Capacity < 1:
		return fmt.Errorf("%w: queue capacity must be at least 1, got %d", ErrInvalid, c.Queue.Capacity)
	case c.Channel.Path == "":
		return fmt.Errorf("%w: channel path is required", ErrInvalid)
	case c.Channel.Grace < 0:
		return fmt.Errorf("%w: grace period must not be negative", ErrInvalid)
	case c.Sinks.PH == "" || c.Sinks.Temperature == "":
		return fmt.Errorf("%w: both sink paths are required", ErrInvalid)
	case c.Sinks.PH == c.Sinks.Temperature:
		return fmt.Errorf("%w: pH and temperature sinks must differ", ErrInvalid)
	case c.Thresholds.PHLow >= c.Thresholds.PHHigh:
		return fmt.Errorf("%w: pH low bound %g must be below high bound %g",
			ErrInvalid, c.Thresholds.PHLow, c.Thresholds.PHHigh)
	case c.Thresholds.TemperatureLow >= c.Thresholds.TemperatureHigh:
		return fmt.Errorf("%w: temperature low bound %g must be below high bound %g",
			ErrInvalid, c.Thresholds.TemperatureLow, c.Thresholds.TemperatureHigh)
	}
	return nil
}

// Sensor holds the emitter configuration.
type Sensor struct {
	Kind     string        `envconfig:"SENSOR_KIND"`
	Interval time.Duration `envconfig:"SENSOR_INTERVAL"`
	File     string        `envconfig:"SENSOR_FILE"`
	Pipe     string        `envconfig:"SENSOR_PIPE"`
	Retry    time.Duration `envconfig:"SENSOR_RETRY"`
	Logging  LogConfig
}

// Sensor kinds accepted by the emitter. They match the monitor's class names.
const (
	SensorPH          = "ph"
	SensorTemperature = "temperature"
)

// ParseSensorKind normalizes a sensor kind given on the command line. The
// numeric codes 1 (temperature) and 2 (pH) are accepted as aliases.
func ParseSensorKind(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "1", "temp", SensorTemperature:
		return SensorTemperature, nil
	case "2", SensorPH:
		return SensorPH, nil
	default:
		return "", fmt.Errorf("%w: unknown sensor kind %q", ErrInvalid, s)
	}
}

// DefaultSensor returns default emitter configuration.
func DefaultSensor() *Sensor {
	return &Sensor{
		Interval: time.Second,
		Pipe:     "/tmp/monisenso.pipe",
		Retry:    time.Second,
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// LoadSensor builds emitter configuration from defaults and the environment.
func LoadSensor() (*Sensor, error) {
	cfg := DefaultSensor()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load sensor config: %w", err)
	}
	return cfg, nil
}

// Validate checks the emitter configuration.
func (s *Sensor) Validate() error {
	switch {
	case s.File == "":
		return fmt.Errorf("%w: data file is required", ErrInvalid)
	case s.Pipe == "":
		return fmt.Errorf("%w: pipe path is required", ErrInvalid)
	case s.Interval < 0:
		return fmt.Errorf("%w: interval must not be negative", ErrInvalid)
	case s.Retry <= 0:
		return fmt.Errorf("%w: retry backoff must be positive", ErrInvalid)
	case s.Kind != "" && s.Kind != SensorPH && s.Kind != SensorTemperature:
		return fmt.Errorf("%w: unknown sensor kind %q", ErrInvalid, s.Kind)
	}
	return nil
}
