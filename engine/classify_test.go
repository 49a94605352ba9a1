package engine

import (
	"errors"
	"reflect"
	"testing"
)

// TestClassifyBuyWithMessage covers a landing that passes start and offers a property.
func TestClassifyBuyWithMessage(t *testing.T) {
	s := snapAt("B2",
		msg("Đi qua Bản Doanh, nhận 2M"),
		NewAction(BuyProperty{PropertyID: "B2", Price: 500, Buyable: true}),
	)

	c, err := Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if want := []string{"Đi qua Bản Doanh, nhận 2M"}; !reflect.DeepEqual(c.Messages, want) {
		t.Errorf("Messages = %q, want %q", c.Messages, want)
	}
	if c.Kind() != DecisionBuyProperty {
		t.Fatalf("Kind = %s, want buy_property", c.Kind())
	}
	if got, want := c.Decision.Payload, (BuyProperty{PropertyID: "B2", Price: 500, Buyable: true}); got != want {
		t.Errorf("Payload = %#v, want %#v", got, want)
	}
	if c.Decision.Index != 1 {
		t.Errorf("Index = %d, want 1", c.Decision.Index)
	}
}

// TestClassifyMessagesDeduplicated verifies every distinct text appears once, in first-seen order,
// wherever it sits relative to the blocking action.
func TestClassifyMessagesDeduplicated(t *testing.T) {
	s := snapAt("1C1",
		msg("Qua ô Bắt đầu (+200k)"),
		msg("Bạn đã đến ô 1C1"),
		NewAction(PayRent{PropertyID: "1C1", Owner: "Q", Amount: 14}),
		msg("Qua ô Bắt đầu (+200k)"),
		msg("Cảnh báo"),
		endTurn(),
		msg("Bạn đã đến ô 1C1"),
	)

	c, err := Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	want := []string{"Qua ô Bắt đầu (+200k)", "Bạn đã đến ô 1C1", "Cảnh báo"}
	if !reflect.DeepEqual(c.Messages, want) {
		t.Errorf("Messages = %q, want %q", c.Messages, want)
	}
	if c.Kind() != DecisionPayRent {
		t.Errorf("Kind = %s, want pay_rent", c.Kind())
	}
	if !c.EndTurn {
		t.Error("EndTurn = false, want true")
	}
}

// TestClassifyNormalizedDuplicates verifies composed and decomposed spellings count once.
func TestClassifyNormalizedDuplicates(t *testing.T) {
	composed := "V\u00e0o t\u00f9!"
	decomposed := "Va\u0300o tu\u0300!"
	c, err := Classify(snapAt("OT", msg(composed), msg(decomposed)))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(c.Messages) != 1 || c.Messages[0] != composed {
		t.Errorf("Messages = %q, want [%q]", c.Messages, composed)
	}
}

// TestClassifyFirstBlockingWins verifies array order decides between blocking actions.
func TestClassifyFirstBlockingWins(t *testing.T) {
	s := snapAt("OT",
		NewAction(PayJailFineForced{Dice: Dice{D1: 4, D2: 3}}),
		endTurn(),
	)
	c, err := Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Kind() != DecisionPayJailFine {
		t.Errorf("Kind = %s, want pay_jail_fine", c.Kind())
	}

	s.PendingActions[0], s.PendingActions[1] = s.PendingActions[1], s.PendingActions[0]
	c, err = Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Kind() != DecisionEndTurn {
		t.Errorf("swapped Kind = %s, want end_turn", c.Kind())
	}
}

// TestClassifyRollAffordance verifies roll_dice is a flag, not a decision.
func TestClassifyRollAffordance(t *testing.T) {
	c, err := Classify(snapAt("BD", rollDice()))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Decision != nil {
		t.Errorf("Decision = %+v, want nil", c.Decision)
	}
	if !c.RollDice {
		t.Error("RollDice = false, want true")
	}
}

// TestClassifyMalformedFails verifies a bad payload fails classification outright.
func TestClassifyMalformedFails(t *testing.T) {
	s := snapAt("1C1", msg("ok"), rawAction(ActionPayRent, `{"property_id":"1C1","owner":"Q"}`))
	_, err := Classify(s)
	if !errors.Is(err, ErrMalformedAction) {
		t.Fatalf("err = %v, want ErrMalformedAction", err)
	}
	var mae *MalformedActionError
	if errors.As(err, &mae) && mae.Index != 1 {
		t.Errorf("Index = %d, want 1", mae.Index)
	}
}

// TestClassifyPure verifies classification neither mutates its input nor varies between calls.
func TestClassifyPure(t *testing.T) {
	s := snapAt("TTN",
		msg("Bạn đã đến ô TTN"),
		NewAction(PayTax{TaxKind: "income", Amount: 120}),
		endTurn(),
	)
	before := s.Clone()

	first, err := Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	second, err := Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Classify not deterministic: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(s, before) {
		t.Error("Classify mutated its argument")
	}
}

// TestMessageBuffer verifies accumulation across calls.
func TestMessageBuffer(t *testing.T) {
	var b MessageBuffer
	if got := b.AddAll([]string{"a", "b", "a"}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("AddAll = %q", got)
	}
	if b.Add("b") {
		t.Error("Add(b) reported new")
	}
	if !b.Add("c") {
		t.Error("Add(c) reported duplicate")
	}
	if got := b.Texts(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Texts = %q", got)
	}
	b.Reset()
	if b.Len() != 0 || b.Texts() != nil {
		t.Errorf("after Reset: Len=%d Texts=%q", b.Len(), b.Texts())
	}
}

// TestWithoutActionCopies verifies removal leaves the source snapshot intact.
func TestWithoutActionCopies(t *testing.T) {
	s := snapAt("OT", NewAction(PayJailFineForced{Dice: Dice{D1: 1, D2: 2}}), endTurn())
	c := s.WithoutAction(0)
	if len(s.PendingActions) != 2 {
		t.Fatalf("source lost actions: %d", len(s.PendingActions))
	}
	if len(c.PendingActions) != 1 || c.PendingActions[0].Kind != ActionEndTurn {
		t.Errorf("copy actions = %+v", c.PendingActions)
	}
}
