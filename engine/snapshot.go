// Package engine sequences a board-game client's reaction to authoritative
// game states.
//
// The rules service decides everything about the game; this package only
// replays the snapshots it returns, classifies the follow-up actions they
// carry and drives the client through a single explicit turn state machine.
// It holds no transport code: the service talks to it through Gateway and
// observes it through Observer.
package engine

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// MortgagedLevel is the property level the rules service uses for a mortgaged property.
const MortgagedLevel = -1

// Unowned is the owner value of a property nobody holds.
const Unowned = ""

// Player is one player's state inside a Snapshot.
type Player struct {
	Budget        int    `json:"budget"`
	Position      string `json:"at"`
	TotalNetWorth int    `json:"total"`
	InJail        bool   `json:"in_jail"`
	JailTurns     int    `json:"jail_turns"`
}

// Property is one property's ownership and improvement state.
// Level -1 is mortgaged, 0..N is the improvement tier.
type Property struct {
	Owner         string `json:"owner"`
	Level         int    `json:"level"`
	CanUpgrade    bool   `json:"can_upgrade"`
	CanDowngrade  bool   `json:"can_downgrade"`
	CanMortgage   bool   `json:"can_mortgage"`
	CanUnmortgage bool   `json:"can_unmortgage"`
}

// Mortgaged reports whether the property is mortgaged.
func (p Property) Mortgaged() bool { return p.Level == MortgagedLevel }

// Owned reports whether some player holds the property.
func (p Property) Owned() bool { return p.Owner != Unowned }

// Snapshot is the authoritative game state at one instant.
//
// A Snapshot is never edited once received: it is superseded by the next one.
// Methods that derive a different state return a new value and leave the
// receiver untouched.
type Snapshot struct {
	Players        map[string]Player
	CurrentPlayer  string
	Properties     map[string]Property
	PendingActions []PendingAction

	// Extra holds server-owned fields the client carries without
	// interpreting them (card queues, player order, building supply).
	Extra map[string]json.RawMessage
}

// Validate checks the structural invariants of the snapshot.
func (s Snapshot) Validate() error {
	if s.CurrentPlayer == "" {
		return fmt.Errorf("%w: current player is empty", ErrMalformedSnapshot)
	}
	if _, ok := s.Players[s.CurrentPlayer]; !ok {
		return fmt.Errorf("%w: current player %q is not a player", ErrMalformedSnapshot, s.CurrentPlayer)
	}
	for id, p := range s.Properties {
		if p.Level < MortgagedLevel {
			return fmt.Errorf("%w: property %q has level %d", ErrMalformedSnapshot, id, p.Level)
		}
	}
	return nil
}

// Acting returns the player whose turn is active.
func (s Snapshot) Acting() Player { return s.Players[s.CurrentPlayer] }

// JailedAt reports whether the acting player is in jail at the given space.
func (s Snapshot) JailedAt(jailSpace string) bool {
	p, ok := s.Players[s.CurrentPlayer]
	return ok && p.InJail && p.Position == jailSpace
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Players:       maps.Clone(s.Players),
		CurrentPlayer: s.CurrentPlayer,
		Properties:    maps.Clone(s.Properties),
	}
	if s.PendingActions != nil {
		c.PendingActions = make([]PendingAction, len(s.PendingActions))
		for i, a := range s.PendingActions {
			c.PendingActions[i] = a.clone()
		}
	}
	if s.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			c.Extra[k] = slices.Clone(v)
		}
	}
	return c
}

// WithoutAction returns a copy of the snapshot with the pending action at
// index i removed. The receiver is not modified.
func (s Snapshot) WithoutAction(i int) Snapshot {
	c := s.Clone()
	if i >= 0 && i < len(c.PendingActions) {
		c.PendingActions = slices.Delete(c.PendingActions, i, i+1)
	}
	return c
}

// MoveSequence is the ordered list of snapshots one movement request produced.
type MoveSequence []Snapshot

// Validate checks that the sequence is non-empty, every snapshot is valid and
// the acting player never changes mid-move.
func (m MoveSequence) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("%w: move sequence is empty", ErrMalformedSnapshot)
	}
	actor := m[0].CurrentPlayer
	for i, s := range m {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("snapshot %d: %w", i, err)
		}
		if s.CurrentPlayer != actor {
			return fmt.Errorf("%w: snapshot %d changes acting player from %q to %q", ErrMalformedSnapshot, i, actor, s.CurrentPlayer)
		}
	}
	return nil
}

// Final returns the last snapshot of the sequence.
func (m MoveSequence) Final() Snapshot { return m[len(m)-1] }

// Dice is a pair of read die faces.
type Dice struct {
	D1 int `json:"dice1"`
	D2 int `json:"dice2"`
}

// Validate checks that both faces are in 1..6.
func (d Dice) Validate() error {
	if d.D1 < 1 || d.D1 > 6 || d.D2 < 1 || d.D2 > 6 {
		return fmt.Errorf("%w: dice (%d, %d) out of range", ErrInvalidDice, d.D1, d.D2)
	}
	return nil
}

// Doubles reports whether both dice show the same face.
func (d Dice) Doubles() bool { return d.D1 == d.D2 }

// Sum returns the number of spaces the dice move.
func (d Dice) Sum() int { return d.D1 + d.D2 }
