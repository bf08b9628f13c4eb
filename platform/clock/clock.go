// Package clock provides an injectable time source so evaluators that depend
// on "now" (recency windows, due dates, lead age) are deterministic in tests.
// This is part of the platform layer and contains no business logic.
package clock

import "time"

// Clock is the time source consumed by engine services.
type Clock interface {
	Now() time.Time
}

// System returns the real wall clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed returns a clock frozen at t. Intended for tests.
func Fixed(t time.Time) Clock {
	return fixedClock{t: t}
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}
