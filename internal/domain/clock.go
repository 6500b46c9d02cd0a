package domain

import "time"

// Clock supplies the time used for expiry and duration checks. Services take
// a Clock rather than calling time.Now so the market state machine can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock implementation of Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
