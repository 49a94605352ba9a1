package session

import (
	"slices"

	"github.com/google/uuid"

	"github.com/jason-s-yu/tycoon/engine"
	"github.com/jason-s-yu/tycoon/internal/board"
)

// UpdateType names what an Update carries.
type UpdateType string

// Update types pushed to subscribers.
const (
	UpdateState      UpdateType = "state"      // full view after a transition or snapshot swap
	UpdateStep       UpdateType = "step"       // one replay step
	UpdateMessages   UpdateType = "messages"   // newly buffered display messages
	UpdateDiagnostic UpdateType = "diagnostic" // non-fatal replay problem
	UpdateClosed     UpdateType = "closed"     // the session ended
)

// Update is one message pushed to the renderer.
type Update struct {
	Type       UpdateType `json:"type"`
	Seq        uint64     `json:"seq"`
	View       *View      `json:"view,omitempty"`
	Step       *StepView  `json:"step,omitempty"`
	Messages   []string   `json:"messages,omitempty"`
	Diagnostic string     `json:"diagnostic,omitempty"`
}

// PlayerView is one player as the renderer draws it.
type PlayerView struct {
	ID        string `json:"id"`
	Budget    int    `json:"budget"`
	Position  string `json:"position"`
	Total     int    `json:"total"`
	InJail    bool   `json:"inJail"`
	JailTurns int    `json:"jailTurns"`
	IsCurrent bool   `json:"isCurrent"`

	// Set when board data is loaded. TrackIndex is -1 off the track.
	Label      string       `json:"label,omitempty"`
	Cell       *board.Space `json:"cell,omitempty"`
	TrackIndex int          `json:"trackIndex"`
}

// PropertyView is one property with the management affordances the service
// computed for the acting player.
type PropertyView struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Group         string `json:"group,omitempty"`
	Price         int    `json:"price,omitempty"`
	Owned         bool   `json:"owned"`
	Owner         string `json:"owner,omitempty"`
	Level         int    `json:"level"`
	Mortgaged     bool   `json:"mortgaged"`
	CanUpgrade    bool   `json:"canUpgrade"`
	CanDowngrade  bool   `json:"canDowngrade"`
	CanMortgage   bool   `json:"canMortgage"`
	CanUnmortgage bool   `json:"canUnmortgage"`
}

// DecisionView is the blocking action on screen.
type DecisionView struct {
	Kind    string         `json:"kind"`
	Payload engine.Payload `json:"payload"`
	// Amount and Affordable are set for rent and tax.
	Amount     int  `json:"amount,omitempty"`
	Affordable bool `json:"affordable"`
	CanDecline bool `json:"canDecline"`
}

// View is the full renderer state of a session.
type View struct {
	SessionID     uuid.UUID        `json:"sessionId"`
	Seq           uint64           `json:"seq"`
	Mode          string           `json:"mode"`
	Decision      *DecisionView    `json:"decision,omitempty"`
	Error         string           `json:"error,omitempty"`
	Retryable     bool             `json:"retryable"`
	CarriedDice   *engine.Dice     `json:"carriedDice,omitempty"`
	CanRoll       bool             `json:"canRoll"`
	Busy          bool             `json:"busy"`
	CurrentPlayer string           `json:"currentPlayer"`
	Players       []PlayerView     `json:"players"`
	Properties    []PropertyView   `json:"properties"`
	Messages      []string         `json:"messages"`
	Lines         []engine.Segment `json:"lines"`
	LastRoll      *RollView        `json:"lastRoll,omitempty"`
}

// RollView is the last roll confirmed this turn.
type RollView struct {
	Dice    engine.Dice `json:"dice"`
	Sum     int         `json:"sum"`
	Doubles bool        `json:"doubles"`
}

// StepView is one applied replay step.
type StepView struct {
	Index    int             `json:"index"`
	Player   string          `json:"player"`
	Position string          `json:"position"`
	Label    string          `json:"label,omitempty"`
	Segment  *engine.Segment `json:"segment,omitempty"`
	// Distance is the forward step count of Segment along the track.
	Distance int      `json:"distance,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

// buildView renders the orchestrator's state. It must run on the event loop.
func (s *Session) buildView() View {
	o := s.orch
	st := o.State()
	snap := o.Snapshot()

	v := View{
		SessionID:     s.ID,
		Seq:           s.seq,
		Mode:          st.Mode.String(),
		CanRoll:       o.CanRoll(),
		Busy:          st.Busy(),
		CurrentPlayer: snap.CurrentPlayer,
		Players:       playerViews(snap, s.players, s.board),
		Properties:    propertyViews(snap, s.board),
		Messages:      o.Messages(),
		Lines:         o.Lines(),
	}
	if v.Messages == nil {
		v.Messages = []string{}
	}

	if st.Mode == engine.ModeError {
		v.Error = st.Reason
		v.Retryable = st.Retryable()
		if st.Resume != nil {
			v.CarriedDice = st.Resume.Carried
		}
	}
	if st.Carried != nil {
		v.CarriedDice = st.Carried
	}
	if st.Decision != nil {
		v.Decision = decisionView(st.Decision, snap)
	}
	if d := s.lastRoll; d != nil {
		v.LastRoll = &RollView{Dice: *d, Sum: d.Sum(), Doubles: d.Doubles()}
	}
	return v
}

func decisionView(d *engine.Decision, snap engine.Snapshot) *DecisionView {
	dv := &DecisionView{Kind: d.Kind.String(), Payload: d.Payload, Affordable: true}
	switch p := d.Payload.(type) {
	case engine.BuyProperty:
		dv.CanDecline = true
		dv.Affordable = p.Buyable
	case engine.PayRent, engine.PayTax:
		dv.Amount, _ = d.Amount()
		dv.Affordable = snap.Acting().Budget >= dv.Amount
	case engine.PayJailFineForced:
		dv.CanDecline = snap.Acting().JailTurns < engine.MaxJailTurns
	}
	return dv
}

// playerViews lists players in turn order, then any the order does not name
// sorted by ID.
func playerViews(snap engine.Snapshot, order []string, b *board.Board) []PlayerView {
	out := make([]PlayerView, 0, len(snap.Players))
	seen := make(map[string]bool, len(snap.Players))
	add := func(id string) {
		p, ok := snap.Players[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		pv := PlayerView{
			ID:         id,
			Budget:     p.Budget,
			Position:   p.Position,
			Total:      p.TotalNetWorth,
			InJail:     p.InJail,
			JailTurns:  p.JailTurns,
			IsCurrent:  id == snap.CurrentPlayer,
			TrackIndex: -1,
		}
		if b != nil {
			pv.Label = b.Label(p.Position)
			pv.TrackIndex = b.TrackIndex(p.Position)
			if cell, ok := b.Position(p.Position); ok {
				pv.Cell = &cell
			}
		}
		out = append(out, pv)
	}
	for _, id := range order {
		add(id)
	}
	rest := make([]string, 0, len(snap.Players))
	for id := range snap.Players {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	for _, id := range rest {
		add(id)
	}
	return out
}

func propertyViews(snap engine.Snapshot, b *board.Board) []PropertyView {
	ids := make([]string, 0, len(snap.Properties))
	for id := range snap.Properties {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]PropertyView, 0, len(ids))
	for _, id := range ids {
		p := snap.Properties[id]
		pv := PropertyView{
			ID:            id,
			Owned:         p.Owned(),
			Owner:         p.Owner,
			Level:         p.Level,
			Mortgaged:     p.Mortgaged(),
			CanUpgrade:    p.CanUpgrade,
			CanDowngrade:  p.CanDowngrade,
			CanMortgage:   p.CanMortgage,
			CanUnmortgage: p.CanUnmortgage,
		}
		if b != nil {
			pv.Name = b.Label(id)
			if deed, ok := b.Property(id); ok {
				pv.Group = deed.Group
				pv.Price = deed.Price
			}
		}
		out = append(out, pv)
	}
	return out
}

func (s *Session) stepView(st *engine.Step) *StepView {
	v := &StepView{
		Index:    st.Index,
		Player:   st.Snapshot.CurrentPlayer,
		Position: st.Snapshot.Acting().Position,
		Messages: st.Messages,
	}
	if st.Segment != nil {
		seg := *st.Segment
		v.Segment = &seg
	}
	if s.board != nil {
		v.Label = s.board.Label(v.Position)
		if v.Segment != nil {
			v.Distance, _ = s.board.Distance(v.Segment.From, v.Segment.To)
		}
	}
	return v
}
