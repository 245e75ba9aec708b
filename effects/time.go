package effects

import (
	"time"

	"github.com/rickb777/date/v2/timespan"
)

type TimeSpan = timespan.TimeSpan

// Measure calls fn and returns the span between the two readings of now
// taken around it.
func Measure(now func() time.Time, fn func()) TimeSpan {
	start := now()
	fn()
	return timespan.BetweenTimes(start, now())
}
