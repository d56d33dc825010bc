// Package config provides 12-factor configuration for the monitor and the
// sensor emitter.
//
// Precedence, lowest first:
//  1. Defaults (Default, DefaultSensor)
//  2. Config file (YAML or TOML, monitor only)
//  3. Environment variables
//  4. CLI flags, applied by the commands
//
// Configuration Sections:
//   - Queue: capacity of both reading queues
//   - Channel: named pipe path, creation, disconnect grace period
//   - Sinks: pH and temperature output files
//   - Thresholds: normal ranges (values on a bound alert)
//   - Classifier: float parsing strictness
//   - Logging: log level and output format
//   - Ops: optional health/metrics listener
//
// Example Usage:
//
//	cfg, err := config.Load("monitor.yaml")
//	if err == nil {
//		err = cfg.Validate()
//	}
//
// Environment Variables:
//   - QUEUE_CAPACITY, CHANNEL_PATH, CHANNEL_CREATE, CHANNEL_GRACE
//   - PH_FILE, TEMPERATURE_FILE
//   - PH_LOW, PH_HIGH, TEMPERATURE_LOW, TEMPERATURE_HIGH
//   - CLASSIFIER_STRICT, LOG_LEVEL, LOG_DEV, OPS_ADDR
//   - SENSOR_KIND, SENSOR_INTERVAL, SENSOR_FILE, SENSOR_PIPE, SENSOR_RETRY
package config
