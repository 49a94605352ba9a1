package engine

import "time"

// Timer is a scheduled callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay.
//
// The replayer assumes callbacks and ReplayHandle.Cancel are serialized by
// the scheduler's owner; SystemScheduler fires on timer goroutines, so a
// concurrent caller wraps it to funnel callbacks onto one goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules with time.AfterFunc.
type SystemScheduler struct{}

// AfterFunc implements Scheduler.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
