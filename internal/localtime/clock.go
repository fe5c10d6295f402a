// Package localtime provides the business-timezone clock used for schedule
// matching and timestamps. Tests inject a clockwork fake clock.
package localtime

import (
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
)

// DefaultZone is the IANA name of the business timezone.
const DefaultZone = "Asia/Singapore"

var defaultLocation = mustLoad(DefaultZone)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Default returns the business timezone. It is a named zone so that cron
// expressions evaluated in it can resolve it again.
func Default() *time.Location { return defaultLocation }

// TimeOfDayLayout is the persisted schedule time format.
const TimeOfDayLayout = "15:04"

// TimestampLayout is the format of human-readable local timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Clock reports the current time in a fixed business location.
type Clock struct {
	base clockwork.Clock
	loc  *time.Location
}

// New wraps base in loc. A nil base uses the real clock; a nil loc uses Default.
func New(base clockwork.Clock, loc *time.Location) *Clock {
	if base == nil {
		base = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = defaultLocation
	}
	return &Clock{base: base, loc: loc}
}

// Now returns the current time in the business location.
func (c *Clock) Now() time.Time {
	return c.base.Now().In(c.loc)
}

// TimeOfDay returns the current local time truncated to "HH:MM".
func (c *Clock) TimeOfDay() string {
	return c.Now().Format(TimeOfDayLayout)
}

// Timestamp returns the current local time with second precision.
func (c *Clock) Timestamp() string {
	return c.Now().Format(TimestampLayout)
}

// Location returns the business location.
func (c *Clock) Location() *time.Location { return c.loc }

// Base returns the underlying clock, for schedulers that accept one.
func (c *Clock) Base() clockwork.Clock { return c.base }
