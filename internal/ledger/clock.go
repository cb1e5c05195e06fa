package ledger

import "time"

// Clock reports the current time in the business timezone. Machines live in a
// fixed-offset region; readings are validated against that clock, never UTC.
type Clock interface {
	Now() time.Time
}

type businessClock struct {
	loc *time.Location
}

// NewBusinessClock returns a Clock pinned to a fixed UTC offset, e.g. -6 for
// central Mexico.
func NewBusinessClock(name string, offsetHours int) Clock {
	return &businessClock{loc: time.FixedZone(name, offsetHours*3600)}
}

func (c *businessClock) Now() time.Time {
	return time.Now().In(c.loc)
}
