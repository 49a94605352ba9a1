package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// ActionKind is the wire tag of a pending action.
type ActionKind string

// Pending action tags emitted by the rules service.
const (
	ActionShowMessage       ActionKind = "show_message"
	ActionBuyProperty       ActionKind = "buy_property"
	ActionPayRent           ActionKind = "pay_rent"
	ActionPayTax            ActionKind = "pay_tax"
	ActionPayJailFineForced ActionKind = "pay_jail_fine_forced"
	ActionEndTurn           ActionKind = "end_turn"
	ActionRollDice          ActionKind = "roll_dice"
)

// Blocking reports whether an action of this kind suspends the turn until the
// player resolves it.
func (k ActionKind) Blocking() bool {
	switch k {
	case ActionBuyProperty, ActionPayRent, ActionPayTax, ActionPayJailFineForced, ActionEndTurn:
		return true
	}
	return false
}

// PendingAction is a follow-up the server asks the client to surface.
type PendingAction struct {
	Kind ActionKind      `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (a PendingAction) clone() PendingAction {
	return PendingAction{Kind: a.Kind, Data: slices.Clone(a.Data)}
}

// Payload is the decoded, kind-specific content of a pending action.
type Payload interface {
	Kind() ActionKind
}

// ShowMessage is informational text; it never blocks.
type ShowMessage struct {
	Text string `json:"message"`
}

// BuyProperty offers the property the player landed on.
type BuyProperty struct {
	PropertyID string `json:"property_id"`
	Price      int    `json:"price"`
	Buyable    bool   `json:"buyable"`
}

// PayRent asks the player to pay rent to the owner of a property.
type PayRent struct {
	PropertyID string `json:"property_id"`
	Owner      string `json:"owner"`
	Amount     int    `json:"rent"`
}

// PayTax asks the player to pay a tax.
type PayTax struct {
	TaxKind string `json:"tax_type"`
	Amount  int    `json:"amount"`
}

// PayJailFineForced is the mandatory fine after the third turn in jail. The
// carried dice are replayed as a move once the fine is paid.
type PayJailFineForced struct {
	Dice Dice `json:"dice"`
}

// EndTurn offers the turn-end control. NextPlayer is false when the same
// player rolls again (doubles).
type EndTurn struct {
	NextPlayer bool `json:"next_player"`
}

// RollDice enables roll capture. It is an affordance, not a decision.
type RollDice struct{}

func (ShowMessage) Kind() ActionKind       { return ActionShowMessage }
func (BuyProperty) Kind() ActionKind       { return ActionBuyProperty }
func (PayRent) Kind() ActionKind           { return ActionPayRent }
func (PayTax) Kind() ActionKind            { return ActionPayTax }
func (PayJailFineForced) Kind() ActionKind { return ActionPayJailFineForced }
func (EndTurn) Kind() ActionKind           { return ActionEndTurn }
func (RollDice) Kind() ActionKind          { return ActionRollDice }

// NewAction builds a pending action from a payload. It is the inverse of
// Decode and is mostly useful to callers composing snapshots by hand.
func NewAction(p Payload) PendingAction {
	var data any
	switch v := p.(type) {
	case PayJailFineForced:
		data = map[string]any{"forced": true, "dice1": v.Dice.D1, "dice2": v.Dice.D2}
	case RollDice:
		data = map[string]any{}
	default:
		data = v
	}
	raw, err := json.Marshal(data)
	if err != nil {
		// Payload structs only hold strings, ints and bools.
		panic(fmt.Sprintf("engine: marshal %s payload: %v", p.Kind(), err))
	}
	return PendingAction{Kind: p.Kind(), Data: raw}
}

// Decode validates the action's payload and returns it typed.
func (a PendingAction) Decode() (Payload, error) { return a.decode(-1) }

func (a PendingAction) decode(index int) (Payload, error) {
	d, err := newPayloadDecoder(a, index)
	if err != nil {
		return nil, err
	}

	switch a.Kind {
	case ActionShowMessage:
		var p ShowMessage
		d.required("message", &p.Text)
		return p, d.err
	case ActionBuyProperty:
		var p BuyProperty
		d.required("property_id", &p.PropertyID)
		d.required("price", &p.Price)
		d.required("buyable", &p.Buyable)
		return p, d.err
	case ActionPayRent:
		var p PayRent
		d.required("property_id", &p.PropertyID)
		d.required("owner", &p.Owner)
		if d.has("rent") || !d.has("amount") {
			d.required("rent", &p.Amount)
		} else {
			d.required("amount", &p.Amount)
		}
		return p, d.err
	case ActionPayTax:
		var p PayTax
		d.required("tax_type", &p.TaxKind)
		d.required("amount", &p.Amount)
		return p, d.err
	case ActionPayJailFineForced:
		var p PayJailFineForced
		d.required("dice1", &p.Dice.D1)
		d.required("dice2", &p.Dice.D2)
		if d.err == nil {
			if err := p.Dice.Validate(); err != nil {
				d.fail("dice1", err)
			}
		}
		return p, d.err
	case ActionEndTurn:
		p := EndTurn{NextPlayer: true}
		d.optional("next_player", &p.NextPlayer)
		return p, d.err
	case ActionRollDice:
		return RollDice{}, nil
	}
	return nil, &MalformedActionError{Index: index, Kind: a.Kind, Err: fmt.Errorf("unknown action kind %q", a.Kind)}
}

// payloadDecoder records the first failure and turns later calls into no-ops,
// so a decode reads as a flat list of field requirements.
type payloadDecoder struct {
	action PendingAction
	index  int
	fields map[string]json.RawMessage
	err    error
}

func newPayloadDecoder(a PendingAction, index int) (*payloadDecoder, error) {
	d := &payloadDecoder{action: a, index: index, fields: map[string]json.RawMessage{}}
	if len(a.Data) == 0 || isNull(a.Data) {
		return d, nil
	}
	if err := json.Unmarshal(a.Data, &d.fields); err != nil {
		return nil, &MalformedActionError{Index: index, Kind: a.Kind, Err: fmt.Errorf("payload is not an object: %w", err)}
	}
	return d, nil
}

func (d *payloadDecoder) has(name string) bool {
	raw, ok := d.fields[name]
	return ok && !isNull(raw)
}

func (d *payloadDecoder) required(name string, dst any) {
	if d.err != nil {
		return
	}
	if !d.has(name) {
		d.err = &MalformedActionError{Index: d.index, Kind: d.action.Kind, Field: name}
		return
	}
	if err := json.Unmarshal(d.fields[name], dst); err != nil {
		d.fail(name, err)
	}
}

func (d *payloadDecoder) optional(name string, dst any) {
	if d.err != nil || !d.has(name) {
		return
	}
	if err := json.Unmarshal(d.fields[name], dst); err != nil {
		d.fail(name, err)
	}
}

func (d *payloadDecoder) fail(name string, err error) {
	d.err = &MalformedActionError{Index: d.index, Kind: d.action.Kind, Field: name, Err: err}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
