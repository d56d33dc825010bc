// Package logging provides structured logging using uber/zap.
//
// Two presets:
//   - Production: JSON lines on stderr
//   - Development: Colored console output for human readability
//
// Every pipeline role logs through a named child logger (collector, consumer.ph,
// consumer.temperature, emitter) carrying the run ID, so a single run can be
// followed across roles.
//
// Example Usage:
//
//	logger, err := logging.FromConfig("info", false)
//	if err != nil {
//		return err
//	}
//	collector := logger.Role("collector", zap.String("run_id", run.String()))
//	collector.Warn("discarding reading", zap.String("token", token))
package logging
