// Package pipeline coordinates one monitor run.
//
// Startup order:
//  1. Assign a run ID and create the named pipe (when configured to)
//  2. Create the pH and temperature queues
//  3. Launch both consumers
//  4. Open the pipe, waiting for a sensor to connect
//  5. Launch the collector
//
// The run ends when all three roles have returned. Cancelling the context
// releases the pipe, which the collector handles like a disconnected sensor.
//
// Example Usage:
//
//	coord := pipeline.New(*cfg, logger, metrics)
//	if err := coord.Run(ctx); err != nil && !pipeline.IsShutdown(err) {
//		return err
//	}
package pipeline
