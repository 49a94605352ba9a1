package session

import (
	"time"

	"github.com/jason-s-yu/tycoon/engine"
)

// loopScheduler runs timer callbacks on the session's event loop instead of
// the timer goroutine, so the orchestrator only ever sees one goroutine.
type loopScheduler struct {
	inner engine.Scheduler
	post  func(func())
}

func (l loopScheduler) AfterFunc(d time.Duration, f func()) engine.Timer {
	return l.inner.AfterFunc(d, func() { l.post(f) })
}
