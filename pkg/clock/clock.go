// Package clock supplies wall-clock time to the allocator, the pruner and
// the session writer. Tests substitute a Fixed clock so directory ages are
// deterministic.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System reads the host clock, truncated to microseconds.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now().Truncate(time.Microsecond)
}

// Fixed is a manually advanced clock.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// Now implements Clock.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Stamp formats t as month, day, hour, minute, second and six digits of
// microseconds ("MMDDhhmmssuuuuuu"). It is used for log file names and for
// the headers written to audit and prune records.
func Stamp(t time.Time) string {
	return t.Format("0102150405") + fmt.Sprintf("%06d", t.Nanosecond()/int(time.Microsecond))
}

// Human renders an elapsed duration as "DDdays HHhrs MMmins SSsecs".
func Human(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hrs := (total % 86400) / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02ddays %02dhrs %02dmins %02dsecs", days, hrs, mins, secs)
}
