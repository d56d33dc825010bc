// Package queue provides the bounded blocking queue shared between a producer
// and a consumer of one reading class.
//
// A Queue holds at most Cap() items. Put suspends the caller while the queue is
// full and Take suspends the caller while it is empty, so a slow consumer pushes
// back on its producer instead of losing readings.
//
// Synchronization:
//   - One mutex guards the ring buffer
//   - notFull wakes a single blocked putter after a Take
//   - notEmpty wakes a single blocked taker after a Put
//
// Close exists for degraded shutdown only. In normal operation Put and Take
// never return an error.
//
// Example Usage:
//
//	q, err := queue.New[reading.Item](10)
//	go func() { _ = q.Put(reading.Of(r)) }()
//	item, _ := q.Take()
package queue
