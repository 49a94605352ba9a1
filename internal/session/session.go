// Package session runs client sessions: one turn orchestrator per session,
// driven from a single event-loop goroutine and observed by any number of
// renderer subscribers.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tycoon/engine"
	"github.com/jason-s-yu/tycoon/internal/board"
)

// ErrClosed is returned by commands sent to a closed session.
var ErrClosed = errors.New("session: closed")

// subscriberBuffer is the per-subscriber queue length. A subscriber that
// falls this far behind loses updates and must resync from View.
const subscriberBuffer = 64

// Config holds what every session of a process shares.
type Config struct {
	StepDelay   time.Duration
	SettleDelay time.Duration
	// Board checks segment endpoints and labels the view. Nil skips both.
	Board *board.Board
	// Scheduler fires replay timers; the session funnels them onto its loop.
	// Nil means engine.SystemScheduler.
	Scheduler engine.Scheduler
	Logger    logrus.FieldLogger
}

// Session is one client session.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	players []string
	board   *board.Board
	log     logrus.FieldLogger

	// Loop-owned state.
	orch     *engine.Orchestrator
	pending  []engine.Event
	seq      uint64
	lastRoll *engine.Dice

	tasks     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	subMu   sync.Mutex
	subs    map[uint64]chan Update
	nextSub uint64
}

// New starts a session on initial, calling the rules service through gw.
// players is the turn order, used to list players in the view.
func New(initial engine.Snapshot, gw engine.Gateway, players []string, cfg Config) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		players:   append([]string(nil), players...),
		board:     cfg.Board,
		log:       log.WithField("session", id.String()),
		tasks:     make(chan func(), 64),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		subs:      make(map[uint64]chan Update),
	}

	inner := cfg.Scheduler
	if inner == nil {
		inner = engine.SystemScheduler{}
	}
	var eb engine.Board
	if cfg.Board != nil {
		eb = cfg.Board
	}
	r := engine.NewReplayer(eb, loopScheduler{inner: inner, post: s.post})
	if cfg.StepDelay > 0 {
		r.StepDelay = cfg.StepDelay
	}
	if cfg.SettleDelay > 0 {
		r.SettleDelay = cfg.SettleDelay
	}

	orch, err := engine.NewOrchestrator(initial, gw, r, engine.WithObserver(s.observe))
	if err != nil {
		return nil, err
	}
	s.orch = orch
	s.flush()

	go s.run()
	s.log.WithFields(logrus.Fields{"players": s.players, "mode": orch.State().String()}).Info("session started")
	return s, nil
}

// Players returns the turn order the session was opened with.
func (s *Session) Players() []string { return append([]string(nil), s.players...) }

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.stopped }

// Close stops the session, cancelling any replay in flight, and closes every
// subscriber channel. It waits for the loop to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case task := <-s.tasks:
			task()
			s.flush()
		case <-s.done:
			s.orch.Close()
			s.broadcast(Update{Type: UpdateClosed})
			s.closeSubscribers()
			s.log.Info("session closed")
			return
		}
	}
}

// post queues f on the loop. It is dropped once the session is closing.
func (s *Session) post(f func()) {
	select {
	case s.tasks <- f:
	case <-s.done:
	}
}

// do runs fn on the loop and waits for its result.
func (s *Session) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	errc := make(chan error, 1)
	task := func() {
		err := fn(ctx)
		if err != nil {
			s.log.WithFields(logrus.Fields{"op": op, "mode": s.orch.State().String()}).WithError(err).Warn("command failed")
		} else {
			s.log.WithField("op", op).Debug("command")
		}
		errc <- err
	}

	select {
	case s.tasks <- task:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-s.stopped:
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// BeginCapture opens dice capture.
func (s *Session) BeginCapture(ctx context.Context) error {
	return s.do(ctx, "begin_capture", func(context.Context) error { return s.orch.BeginCapture() })
}

// CancelCapture closes dice capture.
func (s *Session) CancelCapture(ctx context.Context) error {
	return s.do(ctx, "cancel_capture", func(context.Context) error { return s.orch.CancelCapture() })
}

// ConfirmDice submits a roll.
func (s *Session) ConfirmDice(ctx context.Context, d engine.Dice) error {
	return s.do(ctx, "confirm_dice", func(ctx context.Context) error {
		if err := s.orch.ConfirmDice(ctx, d); err != nil {
			return err
		}
		s.lastRoll = &d
		s.log.WithFields(logrus.Fields{"sum": d.Sum(), "doubles": d.Doubles()}).Debug("dice confirmed")
		return nil
	})
}

// DecideBuy answers a property offer.
func (s *Session) DecideBuy(ctx context.Context, accept bool) error {
	return s.do(ctx, "decide_buy", func(ctx context.Context) error { return s.orch.DecideBuy(ctx, accept) })
}

// Pay settles a rent or tax decision.
func (s *Session) Pay(ctx context.Context) error {
	return s.do(ctx, "pay", func(ctx context.Context) error { return s.orch.Pay(ctx) })
}

// ReturnFromDebt leaves debt resolution.
func (s *Session) ReturnFromDebt(ctx context.Context) error {
	return s.do(ctx, "return_from_debt", func(context.Context) error { return s.orch.ReturnFromDebt() })
}

// DecideJailFine answers the forced jail fine.
func (s *Session) DecideJailFine(ctx context.Context, accept bool) error {
	return s.do(ctx, "decide_jail_fine", func(ctx context.Context) error { return s.orch.DecideJailFine(ctx, accept) })
}

// EndTurn hands the turn over.
func (s *Session) EndTurn(ctx context.Context) error {
	return s.do(ctx, "end_turn", func(ctx context.Context) error { return s.orch.EndTurn(ctx) })
}

// ManageProperty runs a property operation.
func (s *Session) ManageProperty(ctx context.Context, op engine.PropertyOp, propertyID string) error {
	return s.do(ctx, op.String()+"_property", func(ctx context.Context) error {
		return s.orch.ManageProperty(ctx, op, propertyID)
	})
}

// Dismiss leaves a retryable error without retrying.
func (s *Session) Dismiss(ctx context.Context) error {
	return s.do(ctx, "dismiss", func(context.Context) error { return s.orch.Dismiss() })
}

// View returns the current renderer view.
func (s *Session) View(ctx context.Context) (View, error) {
	vc := make(chan View, 1)
	err := s.do(ctx, "view", func(context.Context) error {
		vc <- s.buildView()
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return <-vc, nil
}

// ---------------------------------------------------------------------------
// Events and subscribers
// ---------------------------------------------------------------------------

func (s *Session) observe(ev engine.Event) { s.pending = append(s.pending, ev) }

// flush turns the engine events gathered by the last loop task into
// updates. A single state update closes every batch that changed the state.
func (s *Session) flush() {
	if len(s.pending) == 0 {
		return
	}
	evs := s.pending
	s.pending = nil

	changed := false
	for _, ev := range evs {
		switch ev.Type {
		case engine.EventTransition:
			changed = true
			if ev.To.Mode == engine.ModeTurnComplete {
				s.lastRoll = nil
			}
			entry := s.log.WithFields(logrus.Fields{"from": ev.From.String(), "to": ev.To.String()})
			if ev.To.Mode == engine.ModeError {
				entry.WithField("retryable", ev.To.Retryable()).Warn("turn error")
			} else {
				entry.Debug("transition")
			}
		case engine.EventSnapshot:
			changed = true
		case engine.EventStep:
			s.broadcast(Update{Type: UpdateStep, Step: s.stepView(ev.Step)})
		case engine.EventMessages:
			s.broadcast(Update{Type: UpdateMessages, Messages: ev.Messages})
		case engine.EventDiagnostic:
			s.log.WithField("step", ev.Diagnostic.Step).WithError(ev.Diagnostic.Err).Warn("replay diagnostic")
			s.broadcast(Update{Type: UpdateDiagnostic, Diagnostic: ev.Diagnostic.String()})
		}
	}
	if changed {
		s.seq++
		v := s.buildView()
		s.send(Update{Type: UpdateState, Seq: s.seq, View: &v})
	}
}

func (s *Session) broadcast(u Update) {
	s.seq++
	u.Seq = s.seq
	s.send(u)
}

func (s *Session) send(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- u:
		default:
			s.log.WithField("subscriber", id).Warn("subscriber lagging, update dropped")
		}
	}
}

// Subscribe registers a subscriber. The channel is closed when the session
// closes or cancel is called.
func (s *Session) Subscribe() (updates <-chan Update, cancel func()) {
	ch := make(chan Update, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	select {
	case <-s.done:
		close(ch)
	default:
		s.subs[id] = ch
	}
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
