package adapter

import "time"

// Clock abstracts time so cache expiry and cursor flush timing are testable
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
	Unix(sec int64, nsec int64) time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

// NewClock returns the wall-clock implementation
func NewClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (systemClock) Unix(sec int64, nsec int64) time.Time {
	return time.Unix(sec, nsec)
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
