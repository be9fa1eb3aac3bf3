// internal/clock/clock.go
package clock

import "time"

// Clock abstracts time.Now so turn timing can be controlled in tests.
type Clock interface {
	Now() time.Time
}

// System implements Clock using the system clock.
type System struct{}

// Now returns the current time.
func (System) Now() time.Time {
	return time.Now()
}
