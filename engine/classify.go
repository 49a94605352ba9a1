package engine

import (
	"golang.org/x/text/unicode/norm"
)

// DecisionKind identifies which blocking interaction the player must resolve.
type DecisionKind uint8

const (
	DecisionNone        DecisionKind = iota // 0
	DecisionBuyProperty                     // 1
	DecisionPayRent                         // 2
	DecisionPayTax                          // 3
	DecisionPayJailFine                     // 4
	DecisionEndTurn                         // 5
)

var decisionNames = [...]string{
	DecisionNone:        "none",
	DecisionBuyProperty: "buy_property",
	DecisionPayRent:     "pay_rent",
	DecisionPayTax:      "pay_tax",
	DecisionPayJailFine: "pay_jail_fine",
	DecisionEndTurn:     "end_turn",
}

func (k DecisionKind) String() string {
	if int(k) < len(decisionNames) {
		return decisionNames[k]
	}
	return "unknown"
}

func decisionKindOf(k ActionKind) DecisionKind {
	switch k {
	case ActionBuyProperty:
		return DecisionBuyProperty
	case ActionPayRent:
		return DecisionPayRent
	case ActionPayTax:
		return DecisionPayTax
	case ActionPayJailFineForced:
		return DecisionPayJailFine
	case ActionEndTurn:
		return DecisionEndTurn
	}
	return DecisionNone
}

// Decision is a blocking pending action together with its decoded payload.
// Index is the action's position in the snapshot it was classified from.
type Decision struct {
	Kind    DecisionKind
	Index   int
	Payload Payload
}

// Amount returns the sum the decision asks the player to pay, if any.
func (d Decision) Amount() (int, bool) {
	switch p := d.Payload.(type) {
	case PayRent:
		return p.Amount, true
	case PayTax:
		return p.Amount, true
	}
	return 0, false
}

// Classification is the actionable content of one snapshot.
type Classification struct {
	// Messages holds every distinct show_message text in first-seen order.
	Messages []string
	// Decision is the first blocking action in array order, nil if none.
	Decision *Decision
	// EndTurn reports that an end_turn action is present anywhere.
	EndTurn bool
	// RollDice reports that roll capture should be enabled.
	RollDice bool
}

// Kind returns the classified decision kind, DecisionNone when nothing blocks.
func (c Classification) Kind() DecisionKind {
	if c.Decision == nil {
		return DecisionNone
	}
	return c.Decision.Kind
}

// Classify extracts the actionable subset of a snapshot's pending actions.
// It is pure: the snapshot is only read. Any malformed action fails the whole
// classification; nothing is defaulted.
func Classify(s Snapshot) (Classification, error) {
	var (
		c   Classification
		buf MessageBuffer
	)
	for i, a := range s.PendingActions {
		p, err := a.decode(i)
		if err != nil {
			return Classification{}, err
		}
		switch v := p.(type) {
		case ShowMessage:
			buf.Add(v.Text)
			continue
		case EndTurn:
			c.EndTurn = true
		case RollDice:
			c.RollDice = true
			continue
		}
		if c.Decision == nil && a.Kind.Blocking() {
			c.Decision = &Decision{Kind: decisionKindOf(a.Kind), Index: i, Payload: p}
		}
	}
	c.Messages = buf.Texts()
	return c, nil
}

// Messages harvests the show_message texts of a snapshot without classifying
// its blocking actions. Malformed messages are reported, the rest are kept.
func Messages(s Snapshot) ([]string, []error) {
	var (
		buf  MessageBuffer
		errs []error
	)
	for i, a := range s.PendingActions {
		if a.Kind != ActionShowMessage {
			continue
		}
		p, err := a.decode(i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		buf.Add(p.(ShowMessage).Text)
	}
	return buf.Texts(), errs
}

// MessageBuffer accumulates display messages, dropping repeats. Texts are
// compared after NFC normalization so composed and decomposed diacritics
// count as the same message; the first spelling seen is kept.
type MessageBuffer struct {
	texts []string
	seen  map[string]struct{}
}

// Add appends text unless an equal text is already buffered. It reports
// whether the text was new.
func (b *MessageBuffer) Add(text string) bool {
	key := norm.NFC.String(text)
	if _, ok := b.seen[key]; ok {
		return false
	}
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	b.seen[key] = struct{}{}
	b.texts = append(b.texts, text)
	return true
}

// AddAll adds each text in order and returns the ones that were new.
func (b *MessageBuffer) AddAll(texts []string) []string {
	var added []string
	for _, t := range texts {
		if b.Add(t) {
			added = append(added, t)
		}
	}
	return added
}

// Texts returns a copy of the buffered messages.
func (b *MessageBuffer) Texts() []string {
	if len(b.texts) == 0 {
		return nil
	}
	out := make([]string, len(b.texts))
	copy(out, b.texts)
	return out
}

// Len returns the number of buffered messages.
func (b *MessageBuffer) Len() int { return len(b.texts) }

// Reset empties the buffer.
func (b *MessageBuffer) Reset() {
	b.texts = nil
	b.seen = nil
}
