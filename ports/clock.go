package ports

import "time"

// Clock abstracts time for cache expiry and calibration-age checks so tests
// can drive it deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
