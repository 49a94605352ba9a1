package engine

import (
	"fmt"
	"sync"
	"time"
)

// Default replay pacing.
const (
	DefaultStepDelay   = 100 * time.Millisecond
	DefaultSettleDelay = 300 * time.Millisecond
)

// Step is one applied snapshot of a replay.
type Step struct {
	Index    int
	Snapshot Snapshot
	// Segment is the hop drawn for this step, nil for the first snapshot and
	// for suppressed hops.
	Segment *Segment
	// Messages are the show_message texts first seen at this step.
	Messages    []string
	Diagnostics []Diagnostic
}

// ReplayReport summarizes a completed replay. It depends only on the
// replayed sequence, so replaying the same sequence yields the same report.
type ReplayReport struct {
	Segments    []Segment
	Messages    []string
	Diagnostics []Diagnostic
}

// Replayer applies a move sequence one snapshot at a time on a timer.
type Replayer struct {
	StepDelay   time.Duration
	SettleDelay time.Duration
	Scheduler   Scheduler
	Board       Board
}

// NewReplayer returns a replayer with the default pacing.
func NewReplayer(board Board, sched Scheduler) *Replayer {
	if sched == nil {
		sched = SystemScheduler{}
	}
	return &Replayer{
		StepDelay:   DefaultStepDelay,
		SettleDelay: DefaultSettleDelay,
		Scheduler:   sched,
		Board:       board,
	}
}

// Replay starts replaying seq. The first snapshot is applied before Replay
// returns; each following one StepDelay after its predecessor. onDone runs
// exactly once, SettleDelay after the last step, unless the returned handle
// is cancelled first.
func (r *Replayer) Replay(seq MoveSequence, onStep func(Step), onDone func(Snapshot, ReplayReport)) (*ReplayHandle, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("%w: move sequence is empty", ErrMalformedSnapshot)
	}
	sched := r.Scheduler
	if sched == nil {
		sched = SystemScheduler{}
	}

	segs, segDiags := Segments(seq, r.Board)
	run := &replayRun{
		r:        r,
		seq:      seq,
		segments: segs,
		diags:    make(map[int][]Diagnostic),
		onStep:   onStep,
		onDone:   onDone,
		handle:   &ReplayHandle{sched: sched},
	}
	for _, d := range segDiags {
		run.diags[d.Step] = append(run.diags[d.Step], d)
	}
	run.step(0)
	return run.handle, nil
}

type replayRun struct {
	r        *Replayer
	seq      MoveSequence
	segments []*Segment
	diags    map[int][]Diagnostic
	messages MessageBuffer
	report   ReplayReport
	onStep   func(Step)
	onDone   func(Snapshot, ReplayReport)
	handle   *ReplayHandle
}

func (run *replayRun) step(i int) {
	if !run.handle.live() {
		return
	}

	snap := run.seq[i]
	st := Step{Index: i, Snapshot: snap, Diagnostics: run.diags[i]}
	if seg := run.segments[i]; seg != nil {
		cp := *seg
		st.Segment = &cp
		run.report.Segments = append(run.report.Segments, cp)
	}
	texts, errs := Messages(snap)
	for _, err := range errs {
		st.Diagnostics = append(st.Diagnostics, Diagnostic{Step: i, Err: err})
	}
	st.Messages = run.messages.AddAll(texts)
	run.report.Diagnostics = append(run.report.Diagnostics, st.Diagnostics...)

	if run.onStep != nil {
		run.onStep(st)
	}

	if i+1 < len(run.seq) {
		run.handle.schedule(run.r.StepDelay, func() { run.step(i + 1) })
		return
	}
	run.handle.schedule(run.r.SettleDelay, run.finish)
}

func (run *replayRun) finish() {
	if !run.handle.complete() {
		return
	}
	run.report.Messages = run.messages.Texts()
	if run.onDone != nil {
		run.onDone(run.seq.Final(), run.report)
	}
}

// ReplayHandle owns the single timer of an in-flight replay.
type ReplayHandle struct {
	mu        sync.Mutex
	sched     Scheduler
	timer     Timer
	cancelled bool
	done      bool
}

// Cancel stops the replay. No step or completion callback runs afterwards.
// It reports whether the replay was still in flight.
func (h *ReplayHandle) Cancel() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled || h.done {
		return false
	}
	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	return true
}

// Done reports whether the replay ran to completion.
func (h *ReplayHandle) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Cancelled reports whether the replay was cancelled.
func (h *ReplayHandle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func (h *ReplayHandle) live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.cancelled && !h.done
}

// complete marks the replay done if it is still live.
func (h *ReplayHandle) complete() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled || h.done {
		return false
	}
	h.done = true
	h.timer = nil
	return true
}

func (h *ReplayHandle) schedule(d time.Duration, f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	h.timer = h.sched.AfterFunc(d, f)
}
