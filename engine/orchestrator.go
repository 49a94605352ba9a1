package engine

import (
	"context"
	"errors"
	"fmt"
)

// MaxJailTurns is the jail turn count from which the fine can no longer be declined.
const MaxJailTurns = 3

// EventType names what an Event reports.
type EventType string

const (
	EventTransition EventType = "transition" // the state changed
	EventStep       EventType = "step"       // a replay step was applied
	EventSnapshot   EventType = "snapshot"   // the current snapshot was replaced
	EventMessages   EventType = "messages"   // new display messages were buffered
	EventDiagnostic EventType = "diagnostic" // a non-fatal replay problem was recorded
)

// Event is delivered to the Observer for every observable change.
type Event struct {
	Type       EventType
	From, To   State
	Step       *Step
	Messages   []string
	Diagnostic *Diagnostic
}

// Observer receives orchestrator events. It runs synchronously on the
// goroutine driving the orchestrator and must not call back into it.
type Observer func(Event)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers the observer notified of every event.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// Orchestrator owns the turn state machine of one client session.
//
// It is not safe for concurrent use: every method, and every callback of
// the replayer's scheduler, must run on the same goroutine.
type Orchestrator struct {
	gw       Gateway
	replayer *Replayer
	observer Observer

	state    State
	snap     Snapshot
	messages MessageBuffer
	lines    []Segment
	diags    []Diagnostic
	replay   *ReplayHandle
}

// NewOrchestrator starts a machine on the given snapshot. The snapshot is
// classified right away, so a session restored mid-decision opens on it.
func NewOrchestrator(initial Snapshot, gw Gateway, r *Replayer, opts ...Option) (*Orchestrator, error) {
	if gw == nil {
		return nil, errors.New("engine: nil gateway")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		r = NewReplayer(nil, nil)
	}
	o := &Orchestrator{gw: gw, replayer: r, snap: initial}
	for _, opt := range opts {
		opt(o)
	}
	if _, err := Classify(initial); err != nil {
		return nil, err
	}
	if err := o.settle(); err != nil {
		return nil, err
	}
	return o, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// State returns the current state.
func (o *Orchestrator) State() State { return o.state }

// Snapshot returns the current snapshot.
func (o *Orchestrator) Snapshot() Snapshot { return o.snap }

// Messages returns the display messages buffered this turn.
func (o *Orchestrator) Messages() []string { return o.messages.Texts() }

// Lines returns the movement segments drawn this turn.
func (o *Orchestrator) Lines() []Segment {
	out := make([]Segment, len(o.lines))
	copy(out, o.lines)
	return out
}

// Diagnostics returns every diagnostic recorded by replays of this session.
func (o *Orchestrator) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(o.diags))
	copy(out, o.diags)
	return out
}

// CanRoll reports whether dice capture may start.
func (o *Orchestrator) CanRoll() bool {
	return o.state.Mode == ModeIdle && hasRollAffordance(o.snap)
}

// Replaying reports whether a replay is in flight.
func (o *Orchestrator) Replaying() bool {
	return o.replay != nil && o.replay.live()
}

func hasRollAffordance(s Snapshot) bool {
	for _, a := range s.PendingActions {
		if a.Kind == ActionRollDice {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Rolling
// ---------------------------------------------------------------------------

// BeginCapture opens dice capture.
func (o *Orchestrator) BeginCapture() error {
	if err := o.enter("begin capture", gate{mode: ModeIdle}); err != nil {
		return err
	}
	if !hasRollAffordance(o.snap) {
		return fmt.Errorf("%w: begin capture: no roll affordance", ErrNotAllowed)
	}
	return o.transition(State{Mode: ModeCapturing})
}

// CancelCapture closes dice capture without rolling.
func (o *Orchestrator) CancelCapture() error {
	if o.state.Mode != ModeCapturing || o.state.Carried != nil {
		return fmt.Errorf("%w: cancel capture in %s", ErrNotAllowed, o.state)
	}
	return o.transition(State{Mode: ModeIdle})
}

// ConfirmDice sends the captured dice to the rules service and replays the
// returned move. When the capture carries dice from a forced jail payment,
// d must match them.
func (o *Orchestrator) ConfirmDice(ctx context.Context, d Dice) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := o.enter("confirm dice", gate{mode: ModeCapturing}); err != nil {
		return err
	}
	if c := o.state.Carried; c != nil && *c != d {
		return fmt.Errorf("%w: confirm dice: expected carried dice (%d, %d)", ErrNotAllowed, c.D1, c.D2)
	}

	pre := o.state
	seq, err := o.gw.MoveWithDice(ctx, o.snap, d)
	if err != nil {
		return o.failGateway("move_with_dice", err, &pre)
	}
	return o.startReplay(seq)
}

// ---------------------------------------------------------------------------
// Decisions
// ---------------------------------------------------------------------------

// DecideBuy accepts or declines the property offer.
func (o *Orchestrator) DecideBuy(ctx context.Context, accept bool) error {
	dec, err := o.decision("buy property", DecisionBuyProperty)
	if err != nil {
		return err
	}
	offer := dec.Payload.(BuyProperty)
	if accept && !offer.Buyable {
		return fmt.Errorf("%w: %s costs %d", ErrNotBuyable, offer.PropertyID, offer.Price)
	}

	pre := o.state
	next, err := o.gw.BuyProperty(ctx, o.snap, offer.PropertyID, accept)
	if err != nil {
		return o.failGateway("buy_property", err, &pre)
	}
	return o.applyResponse(next)
}

// Pay settles a rent or tax decision. When the acting player's budget is
// below the amount no call is made and the machine detours into debt
// resolution instead.
func (o *Orchestrator) Pay(ctx context.Context) error {
	dec, err := o.decision("pay", DecisionPayRent, DecisionPayTax)
	if err != nil {
		return err
	}
	amount, _ := dec.Amount()
	if o.snap.Acting().Budget < amount {
		return o.transition(State{Mode: ModeDebtResolution, Decision: dec})
	}

	pre := o.state
	var next Snapshot
	switch p := dec.Payload.(type) {
	case PayRent:
		next, err = o.gw.PayRent(ctx, o.snap, p.PropertyID)
		if err != nil {
			return o.failGateway("pay_rent", err, &pre)
		}
	case PayTax:
		next, err = o.gw.PayTax(ctx, o.snap)
		if err != nil {
			return o.failGateway("pay_tax", err, &pre)
		}
	}
	return o.applyResponse(next)
}

// ReturnFromDebt leaves debt resolution and shows the suspended decision
// again, with its original payload.
func (o *Orchestrator) ReturnFromDebt() error {
	if err := o.enter("return from debt", gate{mode: ModeDebtResolution}); err != nil {
		return err
	}
	return o.transition(State{Mode: ModeAwaitingDecision, Decision: o.state.Decision})
}

// DecideJailFine accepts or declines the forced jail fine. Declining is only
// possible before the third jail turn. Accepting may yield a move, which is
// fetched with the carried dice and replayed.
func (o *Orchestrator) DecideJailFine(ctx context.Context, accept bool) error {
	dec, err := o.decision("pay jail fine", DecisionPayJailFine)
	if err != nil {
		return err
	}
	fine := dec.Payload.(PayJailFineForced)

	if !accept {
		if turns := o.snap.Acting().JailTurns; turns >= MaxJailTurns {
			return fmt.Errorf("%w: %d turns in jail", ErrJailDeclineForbidden, turns)
		}
		o.setSnapshot(o.snap.WithoutAction(dec.Index))
		if err := o.transition(State{Mode: ModeIdle}); err != nil {
			return err
		}
		return o.settle()
	}

	pre := o.state
	dice := fine.Dice
	res, err := o.gw.PayJailFine(ctx, o.snap, &dice)
	if err != nil {
		return o.failGateway("pay_jail_fine", err, &pre)
	}
	if err := res.Snapshot.Validate(); err != nil {
		return o.fatal(err)
	}
	o.setSnapshot(res.Snapshot)
	if !res.ShouldMove {
		if err := o.transition(State{Mode: ModeIdle}); err != nil {
			return err
		}
		return o.settle()
	}

	if res.Dice != nil {
		dice = *res.Dice
	}
	seq, err := o.gw.MoveWithDice(ctx, o.snap, dice)
	if err != nil {
		carried := dice
		return o.failGateway("move_with_dice", err, &State{Mode: ModeCapturing, Carried: &carried})
	}
	return o.startReplay(seq)
}

// EndTurn hands the turn over. It is also the way out of a fatal error.
func (o *Orchestrator) EndTurn(ctx context.Context) error {
	fatal := o.state.Mode == ModeError && o.state.Resume == nil
	if !fatal {
		if _, err := o.decision("end turn", DecisionEndTurn); err != nil {
			return err
		}
	}

	pre := o.state
	next, err := o.gw.NextTurn(ctx, o.snap)
	if err != nil {
		resume := &pre
		if fatal {
			resume = nil
		}
		return o.failGateway("next_turn", err, resume)
	}
	if err := next.Validate(); err != nil {
		return o.fatal(err)
	}

	o.setSnapshot(next)
	if err := o.transition(State{Mode: ModeTurnComplete}); err != nil {
		return err
	}
	o.lines = nil
	o.messages.Reset()
	if err := o.transition(State{Mode: ModeIdle}); err != nil {
		return err
	}
	return o.settle()
}

// ManageProperty upgrades, downgrades, mortgages or unmortgages a property.
// It is offered while idle, while only the turn end is pending, and during
// debt resolution; the mode does not change.
func (o *Orchestrator) ManageProperty(ctx context.Context, op PropertyOp, propertyID string) error {
	err := o.enter("manage property",
		gate{mode: ModeIdle},
		gate{mode: ModeAwaitingDecision, kinds: []DecisionKind{DecisionEndTurn}},
		gate{mode: ModeDebtResolution},
	)
	if err != nil {
		return err
	}

	pre := o.state
	next, err := o.gw.ManageProperty(ctx, o.snap, op, propertyID)
	if err != nil {
		return o.failGateway(op.String()+"_property", err, &pre)
	}
	if err := next.Validate(); err != nil {
		return o.fatal(err)
	}
	o.setSnapshot(next)
	return nil
}

// Dismiss leaves a retryable error state without retrying.
func (o *Orchestrator) Dismiss() error {
	if !o.state.Retryable() {
		return fmt.Errorf("%w: dismiss in %s", ErrNotAllowed, o.state)
	}
	return o.transition(*o.state.Resume)
}

// Close cancels an in-flight replay.
func (o *Orchestrator) Close() {
	if o.replay != nil {
		o.replay.Cancel()
		o.replay = nil
	}
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

type gate struct {
	mode  Mode
	kinds []DecisionKind
}

// enter checks that op is offered in the current state. From a retryable
// error it first resumes the pre-call state when that state offers op.
func (o *Orchestrator) enter(op string, gates ...gate) error {
	for _, g := range gates {
		if o.state.allows(g.mode, g.kinds...) {
			return nil
		}
	}
	if o.state.Retryable() {
		resume := *o.state.Resume
		for _, g := range gates {
			if resume.allows(g.mode, g.kinds...) {
				return o.transition(resume)
			}
		}
	}
	return fmt.Errorf("%w: %s in %s", ErrNotAllowed, op, o.state)
}

func (o *Orchestrator) decision(op string, kinds ...DecisionKind) (*Decision, error) {
	if err := o.enter(op, gate{mode: ModeAwaitingDecision, kinds: kinds}); err != nil {
		return nil, err
	}
	return o.state.Decision, nil
}

func (o *Orchestrator) transition(to State) error {
	from := o.state
	if !CanTransition(from.Mode, to.Mode) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	o.state = to
	o.emit(Event{Type: EventTransition, From: from, To: to})
	return nil
}

func (o *Orchestrator) setSnapshot(s Snapshot) {
	o.snap = s
	o.emit(Event{Type: EventSnapshot})
}

func (o *Orchestrator) addMessages(texts []string) {
	if added := o.messages.AddAll(texts); len(added) > 0 {
		o.emit(Event{Type: EventMessages, Messages: added})
	}
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer != nil {
		o.observer(ev)
	}
}

// settle classifies the current snapshot and shows its blocking action, if
// any. It runs whenever a response has been applied outside a replay.
func (o *Orchestrator) settle() error {
	c, err := Classify(o.snap)
	if err != nil {
		return o.fatal(err)
	}
	o.addMessages(c.Messages)
	if c.Decision == nil {
		if o.state.Mode == ModeIdle {
			return nil
		}
		return o.transition(State{Mode: ModeIdle})
	}
	return o.transition(State{Mode: ModeAwaitingDecision, Decision: c.Decision})
}

// applyResponse swaps in a decision response and settles on it.
func (o *Orchestrator) applyResponse(next Snapshot) error {
	if err := next.Validate(); err != nil {
		return o.fatal(err)
	}
	o.setSnapshot(next)
	if err := o.transition(State{Mode: ModeIdle}); err != nil {
		return err
	}
	return o.settle()
}

func (o *Orchestrator) startReplay(seq MoveSequence) error {
	if err := seq.Validate(); err != nil {
		return o.fatal(err)
	}
	if err := o.transition(State{Mode: ModeReplaying}); err != nil {
		return err
	}
	h, err := o.replayer.Replay(seq, o.onReplayStep, o.onReplayDone)
	if err != nil {
		return o.fatal(err)
	}
	if !h.Done() {
		o.replay = h
	}
	return nil
}

func (o *Orchestrator) onReplayStep(st Step) {
	o.setSnapshot(st.Snapshot)
	if st.Segment != nil {
		o.lines = append(o.lines, *st.Segment)
	}
	for i := range st.Diagnostics {
		o.diags = append(o.diags, st.Diagnostics[i])
		o.emit(Event{Type: EventDiagnostic, Diagnostic: &st.Diagnostics[i]})
	}
	o.emit(Event{Type: EventStep, Step: &st})
	o.addMessages(st.Messages)
}

// onReplayDone classifies only the final snapshot; intermediate pending
// actions were harvested for messages and nothing else.
func (o *Orchestrator) onReplayDone(Snapshot, ReplayReport) {
	o.replay = nil
	// A failed settle is recorded as the Error state; there is no caller to
	// hand the error to.
	_ = o.settle()
}

// failGateway records a failed call. A response that arrived but could not
// be decoded is fatal: retrying would send the same request for the same
// answer.
func (o *Orchestrator) failGateway(op string, err error, resume *State) error {
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		gerr = &GatewayError{Op: op, Err: err}
		err = gerr
	}
	if errors.Is(err, ErrMalformedSnapshot) || errors.Is(err, ErrMalformedAction) {
		return o.fatal(err)
	}
	return o.fail(err, resume)
}

// fatal records an error no retry can fix: the decision it hit is abandoned.
func (o *Orchestrator) fatal(err error) error { return o.fail(err, nil) }

func (o *Orchestrator) fail(err error, resume *State) error {
	if terr := o.transition(State{Mode: ModeError, Reason: err.Error(), Err: err, Resume: resume}); terr != nil {
		return errors.Join(err, terr)
	}
	return err
}
