package engine

import "context"

// PropertyOp is a property-management operation offered by the rules service.
type PropertyOp uint8

const (
	PropertyUpgrade PropertyOp = iota
	PropertyDowngrade
	PropertyMortgage
	PropertyUnmortgage
)

var propertyOpNames = [...]string{
	PropertyUpgrade:    "upgrade",
	PropertyDowngrade:  "downgrade",
	PropertyMortgage:   "mortgage",
	PropertyUnmortgage: "unmortgage",
}

func (op PropertyOp) String() string {
	if int(op) < len(propertyOpNames) {
		return propertyOpNames[op]
	}
	return "unknown"
}

// ParsePropertyOp maps an operation name back to its PropertyOp.
func ParsePropertyOp(name string) (PropertyOp, bool) {
	for i, n := range propertyOpNames {
		if n == name {
			return PropertyOp(i), true
		}
	}
	return 0, false
}

// JailFineResult is the rules service's answer to a jail fine payment.
// When ShouldMove is set the player rolled out of jail and Dice must be
// replayed as a move.
type JailFineResult struct {
	Snapshot   Snapshot
	ShouldMove bool
	Dice       *Dice
}

// Gateway is the set of operations the orchestrator calls on the rules
// service. Every call is request/response; a failure must be reported as an
// error and must not be retried by the implementation.
type Gateway interface {
	MoveWithDice(ctx context.Context, s Snapshot, d Dice) (MoveSequence, error)
	NextTurn(ctx context.Context, s Snapshot) (Snapshot, error)
	BuyProperty(ctx context.Context, s Snapshot, propertyID string, buy bool) (Snapshot, error)
	PayRent(ctx context.Context, s Snapshot, propertyID string) (Snapshot, error)
	PayTax(ctx context.Context, s Snapshot) (Snapshot, error)
	// PayJailFine pays the fine. Dice is set for the forced payment and nil
	// for a voluntary one.
	PayJailFine(ctx context.Context, s Snapshot, d *Dice) (JailFineResult, error)
	ManageProperty(ctx context.Context, s Snapshot, op PropertyOp, propertyID string) (Snapshot, error)
}
