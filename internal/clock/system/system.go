// Package system provides the wall clock used to stamp quotes and events.
package system

import "time"

// Precision matches Postgres TIMESTAMP columns, so a time taken here compares
// equal to the same instant read back from the database.
const Precision = time.Microsecond

// Clock reads the UTC wall clock at Precision.
type Clock struct{}

// New creates a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time truncated to Precision.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}
