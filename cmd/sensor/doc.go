// Package main is the entry point for the sensor emitter.
//
// The sensor replays a data file into the monitor's named pipe, one reading
// per line, waiting the given interval between readings.
//
// Usage:
//
//	./sensor -s 1 -t 3 -f temperature.txt -p /tmp/monisenso.pipe
//	./sensor -s ph -t 1 -f 'data/**/ph-*.txt' -p /tmp/monisenso.pipe
//
// Sensor kinds: 1 or temperature, 2 or ph. The kind only drives warnings for
// readings the monitor would route elsewhere.
package main
