// Package system provides the real clock pinned to the pipeline's zone.
package system

import "time"

// Clock implements seminar.Clock using time.Now in a fixed location.
// Date arithmetic (the future-only filter, dedup cutoffs) depends on the
// configured zone, not the host's.
type Clock struct {
	loc *time.Location
}

// New creates a Clock in the given location; nil falls back to UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
