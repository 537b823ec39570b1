package ledgersync

import "time"

// Clock abstracts "now" so that staleness checks and timestamps are
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock reading the wall clock.
func SystemClock() Clock { return ClockFunc(time.Now) }

// FixedClock returns a Clock pinned at t.
func FixedClock(t time.Time) Clock { return ClockFunc(func() time.Time { return t }) }
