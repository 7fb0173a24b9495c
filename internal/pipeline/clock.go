package pipeline

import "sync/atomic"

// Clock is a monotonic logical clock for ordering pass invocations.
//
// All invocations within a run are stamped with a strictly increasing seq
// number from this clock, so replaying a run yields the same order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), though
// the driver only calls it from the goroutine running the pipeline.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing. After a
// run it equals the number of pass invocations.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
