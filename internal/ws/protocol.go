package ws

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/tycoon/engine"
	"github.com/jason-s-yu/tycoon/internal/detector"
	"github.com/jason-s-yu/tycoon/internal/session"
)

// Command types accepted from the renderer.
const (
	CmdCaptureBegin   = "capture_begin"
	CmdCaptureCancel  = "capture_cancel"
	CmdDice           = "dice"
	CmdBuy            = "buy"
	CmdPay            = "pay"
	CmdDebtReturn     = "debt_return"
	CmdJailFine       = "jail_fine"
	CmdEndTurn        = "end_turn"
	CmdManageProperty = "manage_property"
	CmdDismiss        = "dismiss"
	CmdView           = "view"
)

// Reply types sent back for a command.
const (
	ReplyAck   = "ack"
	ReplyError = "error"
	ReplyView  = "view"
)

// Error codes carried by an error reply.
const (
	CodeBadRequest  = "bad_request"
	CodeNotAllowed  = "not_allowed"
	CodeInvalidDice = "invalid_dice"
	CodeNotBuyable  = "not_buyable"
	CodeMandatory   = "jail_fine_mandatory"
	CodeGateway     = "gateway"
	CodeMalformed   = "malformed_state"
	CodeClosed      = "closed"
	CodeInternal    = "internal"
)

// Command is one message from the renderer. Which fields matter depends on
// Type. A dice command carries either explicit Dice or a detector Frame.
type Command struct {
	ID         string          `json:"id,omitempty"`
	Type       string          `json:"type"`
	Accept     *bool           `json:"accept,omitempty"`
	Dice       *engine.Dice    `json:"dice,omitempty"`
	Frame      *detector.Frame `json:"frame,omitempty"`
	Op         string          `json:"op,omitempty"`
	PropertyID string          `json:"property_id,omitempty"`
}

// Reply answers a Command.
type Reply struct {
	Type  string        `json:"type"`
	ID    string        `json:"id,omitempty"`
	Code  string        `json:"code,omitempty"`
	Error string        `json:"error,omitempty"`
	View  *session.View `json:"view,omitempty"`
}

// errBadRequest marks a command the server could not make sense of.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// dispatch runs cmd against s. A non-nil view is returned for CmdView.
func dispatch(ctx context.Context, s *session.Session, cmd Command) (*session.View, error) {
	switch cmd.Type {
	case CmdCaptureBegin:
		return nil, s.BeginCapture(ctx)
	case CmdCaptureCancel:
		return nil, s.CancelCapture(ctx)
	case CmdDice:
		d, err := cmd.roll()
		if err != nil {
			return nil, err
		}
		return nil, s.ConfirmDice(ctx, d)
	case CmdBuy:
		accept, err := cmd.accept()
		if err != nil {
			return nil, err
		}
		return nil, s.DecideBuy(ctx, accept)
	case CmdPay:
		return nil, s.Pay(ctx)
	case CmdDebtReturn:
		return nil, s.ReturnFromDebt(ctx)
	case CmdJailFine:
		accept, err := cmd.accept()
		if err != nil {
			return nil, err
		}
		return nil, s.DecideJailFine(ctx, accept)
	case CmdEndTurn:
		return nil, s.EndTurn(ctx)
	case CmdManageProperty:
		op, ok := engine.ParsePropertyOp(cmd.Op)
		if !ok {
			return nil, badRequest("unknown property operation %q", cmd.Op)
		}
		if cmd.PropertyID == "" {
			return nil, badRequest("property_id is required")
		}
		return nil, s.ManageProperty(ctx, op, cmd.PropertyID)
	case CmdDismiss:
		return nil, s.Dismiss(ctx)
	case CmdView:
		v, err := s.View(ctx)
		if err != nil {
			return nil, err
		}
		return &v, nil
	default:
		return nil, badRequest("unknown command %q", cmd.Type)
	}
}

func (c Command) roll() (engine.Dice, error) {
	switch {
	case c.Dice != nil && c.Frame != nil:
		return engine.Dice{}, badRequest("dice and frame are exclusive")
	case c.Dice != nil:
		return *c.Dice, nil
	case c.Frame != nil:
		d, err := c.Frame.Dice()
		if errors.Is(err, engine.ErrInvalidDice) {
			return engine.Dice{}, err
		}
		if err != nil {
			return engine.Dice{}, badRequest("%v", err)
		}
		return d, nil
	default:
		return engine.Dice{}, badRequest("dice or frame is required")
	}
}

func (c Command) accept() (bool, error) {
	if c.Accept == nil {
		return false, badRequest("accept is required")
	}
	return *c.Accept, nil
}

// errorCode classifies a command failure for the renderer.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return CodeBadRequest
	case errors.Is(err, engine.ErrInvalidDice):
		return CodeInvalidDice
	case errors.Is(err, engine.ErrNotBuyable):
		return CodeNotBuyable
	case errors.Is(err, engine.ErrJailDeclineForbidden):
		return CodeMandatory
	case errors.Is(err, engine.ErrNotAllowed):
		return CodeNotAllowed
	case errors.Is(err, engine.ErrMalformedSnapshot), errors.Is(err, engine.ErrMalformedAction):
		return CodeMalformed
	case errors.Is(err, engine.ErrGateway):
		return CodeGateway
	case errors.Is(err, session.ErrClosed):
		return CodeClosed
	default:
		return CodeInternal
	}
}
