package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedAction marks a pending action whose payload is missing or mistyped.
	ErrMalformedAction = errors.New("malformed pending action")
	// ErrMalformedSnapshot marks a snapshot or move sequence that breaks its invariants.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	// ErrUnknownSpace marks a segment endpoint absent from the board data.
	ErrUnknownSpace = errors.New("unknown board space")
	// ErrGateway marks a failed remote operation.
	ErrGateway = errors.New("gateway call failed")
	// ErrInvalidTransition marks a state change the transition table does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotAllowed marks an operation invoked in a mode that does not offer it.
	ErrNotAllowed = errors.New("operation not allowed in current mode")
	// ErrNotBuyable marks an accepted purchase the player cannot afford.
	ErrNotBuyable = errors.New("property is not buyable")
	// ErrJailDeclineForbidden marks a declined jail fine after the third jail turn.
	ErrJailDeclineForbidden = errors.New("jail fine is mandatory")
	// ErrInvalidDice marks die faces outside 1..6.
	ErrInvalidDice = errors.New("invalid dice")
)

// MalformedActionError describes which pending action could not be decoded.
type MalformedActionError struct {
	Index int
	Kind  ActionKind
	Field string
	Err   error
}

func (e *MalformedActionError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("pending action %d (%s): field %q: %v", e.Index, e.Kind, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("pending action %d (%s): missing field %q", e.Index, e.Kind, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("pending action %d (%s): %v", e.Index, e.Kind, e.Err)
	}
	return fmt.Sprintf("pending action %d (%s): malformed", e.Index, e.Kind)
}

func (e *MalformedActionError) Unwrap() error { return e.Err }

// Is makes every MalformedActionError match ErrMalformedAction.
func (e *MalformedActionError) Is(target error) bool { return target == ErrMalformedAction }

// GatewayError wraps a failed remote operation.
type GatewayError struct {
	Op     string
	Status int // HTTP status when the service answered, 0 on transport failure
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is makes every GatewayError match ErrGateway.
func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
