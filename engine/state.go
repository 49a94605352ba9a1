package engine

import (
	"fmt"
	"slices"
)

// Mode is the client-visible phase of the turn.
type Mode uint8

const (
	ModeIdle             Mode = iota // waiting for the player to roll or act
	ModeCapturing                    // dice capture in progress
	ModeReplaying                    // a move sequence is being replayed
	ModeAwaitingDecision             // a blocking pending action is shown
	ModeDebtResolution               // mortgaging or selling before an unaffordable payment
	ModeTurnComplete                 // the turn was handed over
	ModeError                        // a call or classification failed
)

var modeNames = [...]string{
	ModeIdle:             "idle",
	ModeCapturing:        "capturing",
	ModeReplaying:        "replaying",
	ModeAwaitingDecision: "awaiting_decision",
	ModeDebtResolution:   "debt_resolution",
	ModeTurnComplete:     "turn_complete",
	ModeError:            "error",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// transitions is the complete transition table. A move not listed here is a
// programming error and is refused.
var transitions = map[Mode][]Mode{
	ModeIdle:             {ModeCapturing, ModeAwaitingDecision, ModeError},
	ModeCapturing:        {ModeIdle, ModeReplaying, ModeError},
	ModeReplaying:        {ModeAwaitingDecision, ModeIdle, ModeError},
	ModeAwaitingDecision: {ModeIdle, ModeDebtResolution, ModeReplaying, ModeTurnComplete, ModeError},
	ModeDebtResolution:   {ModeAwaitingDecision, ModeError},
	ModeTurnComplete:     {ModeIdle, ModeError},
	ModeError:            {ModeIdle, ModeCapturing, ModeAwaitingDecision, ModeDebtResolution, ModeTurnComplete, ModeError},
}

// CanTransition reports whether the table allows moving from one mode to another.
func CanTransition(from, to Mode) bool {
	return slices.Contains(transitions[from], to)
}

// State is the orchestrator's single tagged state value.
type State struct {
	Mode Mode

	// Decision is the blocking action shown in ModeAwaitingDecision. In
	// ModeDebtResolution it is the decision resumed on return, kept exactly
	// as it was when the detour started.
	Decision *Decision

	// Reason and Err describe a ModeError state.
	Reason string
	Err    error

	// Resume is the pre-call state a ModeError state returns to when the
	// user retries. It is nil for fatal errors.
	Resume *State

	// Carried holds dice the next move must use, set in ModeCapturing after
	// a forced jail payment whose move could not be fetched.
	Carried *Dice
}

// DecisionKind returns the kind of the state's decision, DecisionNone if unset.
func (s State) DecisionKind() DecisionKind {
	if s.Decision == nil {
		return DecisionNone
	}
	return s.Decision.Kind
}

// Retryable reports whether an error state can resume.
func (s State) Retryable() bool { return s.Mode == ModeError && s.Resume != nil }

// Busy reports whether roll and decision affordances other than the current
// decision must be disabled.
func (s State) Busy() bool {
	switch s.Mode {
	case ModeCapturing, ModeReplaying, ModeAwaitingDecision, ModeDebtResolution:
		return true
	}
	return false
}

func (s State) String() string {
	switch s.Mode {
	case ModeAwaitingDecision, ModeDebtResolution:
		return fmt.Sprintf("%s(%s)", s.Mode, s.DecisionKind())
	case ModeError:
		return fmt.Sprintf("%s(%s)", s.Mode, s.Reason)
	}
	return s.Mode.String()
}

// allows reports whether the state offers an operation restricted to the
// given mode and, when kinds is non-empty, to one of the decision kinds.
func (s State) allows(mode Mode, kinds ...DecisionKind) bool {
	if s.Mode != mode {
		return false
	}
	return len(kinds) == 0 || slices.Contains(kinds, s.DecisionKind())
}
