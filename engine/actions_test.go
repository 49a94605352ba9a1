package engine

import (
	"errors"
	"testing"
)

// TestDecodePayloads verifies every action kind decodes from the wire shape the rules service emits.
func TestDecodePayloads(t *testing.T) {
	tests := []struct {
		name   string
		action PendingAction
		want   Payload
	}{
		{"message", rawAction(ActionShowMessage, `{"message":"Vào tù!"}`), ShowMessage{Text: "Vào tù!"}},
		{"buy", rawAction(ActionBuyProperty, `{"property_id":"1B1","price":60,"buyable":true}`), BuyProperty{PropertyID: "1B1", Price: 60, Buyable: true}},
		{"rent", rawAction(ActionPayRent, `{"property_id":"1B1","owner":"Q","rent":4}`), PayRent{PropertyID: "1B1", Owner: "Q", Amount: 4}},
		{"rent amount alias", rawAction(ActionPayRent, `{"property_id":"1B1","owner":"Q","amount":9}`), PayRent{PropertyID: "1B1", Owner: "Q", Amount: 9}},
		{"tax", rawAction(ActionPayTax, `{"tax_type":"luxury","amount":75}`), PayTax{TaxKind: "luxury", Amount: 75}},
		{"jail", rawAction(ActionPayJailFineForced, `{"forced":true,"dice1":4,"dice2":3}`), PayJailFineForced{Dice: Dice{D1: 4, D2: 3}}},
		{"end turn", rawAction(ActionEndTurn, `{"next_player":false}`), EndTurn{NextPlayer: false}},
		{"end turn default", rawAction(ActionEndTurn, `{}`), EndTurn{NextPlayer: true}},
		{"end turn no data", PendingAction{Kind: ActionEndTurn}, EndTurn{NextPlayer: true}},
		{"roll", rawAction(ActionRollDice, `{}`), RollDice{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.action.Decode()
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestDecodeMalformed verifies missing or mistyped fields are reported, never defaulted.
func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name      string
		action    PendingAction
		wantField string
	}{
		{"rent without amount", rawAction(ActionPayRent, `{"property_id":"1B1","owner":"Q"}`), "rent"},
		{"rent null amount", rawAction(ActionPayRent, `{"property_id":"1B1","owner":"Q","rent":null}`), "rent"},
		{"buy without price", rawAction(ActionBuyProperty, `{"property_id":"1B1","buyable":true}`), "price"},
		{"tax without amount", rawAction(ActionPayTax, `{"tax_type":"income"}`), "amount"},
		{"message wrong type", rawAction(ActionShowMessage, `{"message":42}`), "message"},
		{"jail die out of range", rawAction(ActionPayJailFineForced, `{"dice1":7,"dice2":3}`), "dice1"},
		{"jail without dice", rawAction(ActionPayJailFineForced, `{"forced":true}`), "dice1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.action.Decode()
			if !errors.Is(err, ErrMalformedAction) {
				t.Fatalf("err = %v, want ErrMalformedAction", err)
			}
			var mae *MalformedActionError
			if !errors.As(err, &mae) {
				t.Fatalf("err %T is not *MalformedActionError", err)
			}
			if mae.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", mae.Field, tt.wantField)
			}
		})
	}
}

// TestDecodeUnknownKind verifies unknown tags are malformed rather than ignored.
func TestDecodeUnknownKind(t *testing.T) {
	_, err := rawAction("draw_card", `{}`).Decode()
	if !errors.Is(err, ErrMalformedAction) {
		t.Fatalf("err = %v, want ErrMalformedAction", err)
	}
}

// TestDecodeNonObjectPayload verifies a payload that is not a JSON object fails.
func TestDecodeNonObjectPayload(t *testing.T) {
	_, err := rawAction(ActionPayTax, `[1,2]`).Decode()
	if !errors.Is(err, ErrMalformedAction) {
		t.Fatalf("err = %v, want ErrMalformedAction", err)
	}
}

// TestNewActionRoundTrip verifies NewAction produces payloads Decode accepts.
func TestNewActionRoundTrip(t *testing.T) {
	payloads := []Payload{
		ShowMessage{Text: "Qua ô Bắt đầu (+200k)"},
		BuyProperty{PropertyID: "B2", Price: 500, Buyable: true},
		PayRent{PropertyID: "1C1", Owner: "Q", Amount: 14},
		PayTax{TaxKind: "income", Amount: 120},
		PayJailFineForced{Dice: Dice{D1: 2, D2: 5}},
		EndTurn{NextPlayer: false},
		RollDice{},
	}
	for _, p := range payloads {
		got, err := NewAction(p).Decode()
		if err != nil {
			t.Fatalf("%s: Decode: %v", p.Kind(), err)
		}
		if got != p {
			t.Errorf("%s: got %#v, want %#v", p.Kind(), got, p)
		}
	}
}

// TestBlockingKinds verifies which kinds suspend the turn.
func TestBlockingKinds(t *testing.T) {
	blocking := map[ActionKind]bool{
		ActionShowMessage:       false,
		ActionRollDice:          false,
		ActionBuyProperty:       true,
		ActionPayRent:           true,
		ActionPayTax:            true,
		ActionPayJailFineForced: true,
		ActionEndTurn:           true,
	}
	for k, want := range blocking {
		if got := k.Blocking(); got != want {
			t.Errorf("%s.Blocking() = %v, want %v", k, got, want)
		}
	}
}

// TestDiceValidate verifies die faces are bounded to 1..6.
func TestDiceValidate(t *testing.T) {
	if err := (Dice{D1: 1, D2: 6}).Validate(); err != nil {
		t.Errorf("Validate(1,6) = %v", err)
	}
	for _, d := range []Dice{{0, 3}, {3, 7}, {-1, 2}} {
		if err := d.Validate(); !errors.Is(err, ErrInvalidDice) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidDice", d, err)
		}
	}
}
