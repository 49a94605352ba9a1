package engine

import (
	"context"
	"sort"
	"time"

	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Manual scheduler
// ---------------------------------------------------------------------------

type manualTimer struct {
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler fires timers only when the test advances its clock, on the
// test goroutine, in deadline order.
type manualScheduler struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.seq++
	t := &manualTimer{at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) next() *manualTimer {
	var pending []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].at != pending[j].at {
			return pending[i].at < pending[j].at
		}
		return pending[i].seq < pending[j].seq
	})
	return pending[0]
}

// Advance moves the clock forward by d, firing every timer due on the way.
func (s *manualScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		t := s.next()
		if t == nil || t.at > target {
			break
		}
		s.now = t.at
		t.fired = true
		t.f()
	}
	s.now = target
}

// RunAll fires timers until none is pending.
func (s *manualScheduler) RunAll() {
	for t := s.next(); t != nil; t = s.next() {
		s.now = t.at
		t.fired = true
		t.f()
	}
}

// Pending returns the number of timers still armed.
func (s *manualScheduler) Pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Board
// ---------------------------------------------------------------------------

type setBoard map[string]bool

func (b setBoard) HasSpace(id string) bool { return b[id] }
func (b setBoard) JailSpace() string       { return DefaultJailSpace }

func newSetBoard(ids ...string) setBoard {
	b := setBoard{DefaultJailSpace: true}
	for _, id := range ids {
		b[id] = true
	}
	return b
}

// ---------------------------------------------------------------------------
// Snapshot builders
// ---------------------------------------------------------------------------

const testPlayer = "P"

func snapAt(pos string, actions ...PendingAction) Snapshot {
	return Snapshot{
		Players: map[string]Player{
			testPlayer: {Budget: 1000, Position: pos, TotalNetWorth: 1000},
			"Q":        {Budget: 1000, Position: "BD", TotalNetWorth: 1000},
		},
		CurrentPlayer:  testPlayer,
		Properties:     map[string]Property{},
		PendingActions: actions,
	}
}

func withPlayer(s Snapshot, fn func(p *Player)) Snapshot {
	c := s.Clone()
	p := c.Players[c.CurrentPlayer]
	fn(&p)
	c.Players[c.CurrentPlayer] = p
	return c
}

func jailed(s Snapshot) Snapshot {
	return withPlayer(s, func(p *Player) { p.InJail = true })
}

func msg(text string) PendingAction { return NewAction(ShowMessage{Text: text}) }
func endTurn() PendingAction        { return NewAction(EndTurn{NextPlayer: true}) }
func rollDice() PendingAction       { return NewAction(RollDice{}) }

func rawAction(kind ActionKind, data string) PendingAction {
	return PendingAction{Kind: kind, Data: []byte(data)}
}

// ---------------------------------------------------------------------------
// Gateway mock
// ---------------------------------------------------------------------------

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) MoveWithDice(ctx context.Context, s Snapshot, d Dice) (MoveSequence, error) {
	args := m.Called(ctx, s, d)
	seq, _ := args.Get(0).(MoveSequence)
	return seq, args.Error(1)
}

func (m *mockGateway) NextTurn(ctx context.Context, s Snapshot) (Snapshot, error) {
	args := m.Called(ctx, s)
	next, _ := args.Get(0).(Snapshot)
	return next, args.Error(1)
}

func (m *mockGateway) BuyProperty(ctx context.Context, s Snapshot, propertyID string, buy bool) (Snapshot, error) {
	args := m.Called(ctx, s, propertyID, buy)
	next, _ := args.Get(0).(Snapshot)
	return next, args.Error(1)
}

func (m *mockGateway) PayRent(ctx context.Context, s Snapshot, propertyID string) (Snapshot, error) {
	args := m.Called(ctx, s, propertyID)
	next, _ := args.Get(0).(Snapshot)
	return next, args.Error(1)
}

func (m *mockGateway) PayTax(ctx context.Context, s Snapshot) (Snapshot, error) {
	args := m.Called(ctx, s)
	next, _ := args.Get(0).(Snapshot)
	return next, args.Error(1)
}

func (m *mockGateway) PayJailFine(ctx context.Context, s Snapshot, d *Dice) (JailFineResult, error) {
	args := m.Called(ctx, s, d)
	res, _ := args.Get(0).(JailFineResult)
	return res, args.Error(1)
}

func (m *mockGateway) ManageProperty(ctx context.Context, s Snapshot, op PropertyOp, propertyID string) (Snapshot, error) {
	args := m.Called(ctx, s, op, propertyID)
	next, _ := args.Get(0).(Snapshot)
	return next, args.Error(1)
}
