/*
Package monitoring provides Prometheus metrics for the sensor monitor.

# Overview

Every monitor process owns one Metrics value backed by a private registry, so
several pipelines (and tests) can run side by side without colliding on the
default registerer.

# Metrics

  - monitor_readings_total{class}: readings written to a sink
  - monitor_alerts_total{class}: out-of-range readings
  - monitor_discarded_total{reason}: tokens dropped by the collector
  - monitor_sink_errors_total{class}: failed sink writes
  - monitor_queue_depth{class}, monitor_queue_capacity{class}
  - monitor_collector_state
  - monitor_uptime_seconds
  - monitor_ops_requests_total, monitor_ops_request_duration_seconds

# Usage

	metrics := monitoring.NewMetrics()
	defer metrics.Close()

	metrics.RegisterQueue("ph", q.Cap(), q.Len)
	metrics.RecordAlert("ph")

	// Add middleware to the ops router
	router.Use(monitoring.Middleware(metrics))

# Metrics Endpoint

	handler := promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})
	router.GET("/metrics", gin.WrapH(handler))
*/
package monitoring
