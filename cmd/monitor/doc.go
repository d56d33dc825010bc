// Package main is the entry point for the sensor monitor.
//
// The monitor creates a named pipe, waits for a sensor to connect and splits
// the readings it receives into a pH file and a temperature file, alerting on
// values at or beyond each normal range.
//
// Architecture:
//
//	sensor → named pipe → collector ┬→ pH queue → pH consumer → pH-data.txt
//	                                └→ temperature queue → temperature consumer → temperature-data.txt
//
// Configuration:
//   - Defaults
//   - Config file (--config, YAML or TOML)
//   - Environment variables (12-factor)
//   - CLI flags (override everything)
//
// Usage:
//
//	./monitor -b 10 -t temperature-data.txt -h pH-data.txt -p /tmp/monisenso.pipe
//
//	# Development mode (colored logs) with the ops listener
//	./monitor -p /tmp/monisenso.pipe --dev --ops-addr :9100
//
// Signals:
//   - SIGINT, SIGTERM: Release the pipe and drain both queues
package main
