package ws

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jason-s-yu/tycoon/engine"
	"github.com/jason-s-yu/tycoon/internal/session"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"bad request", badRequest("nope"), CodeBadRequest},
		{"invalid dice", engine.ErrInvalidDice, CodeInvalidDice},
		{"not allowed", fmt.Errorf("%w: pay in idle", engine.ErrNotAllowed), CodeNotAllowed},
		{"transport", &engine.GatewayError{Op: "pay_tax", Err: context.DeadlineExceeded}, CodeGateway},
		{"service status", &engine.GatewayError{Op: "pay_tax", Status: 500, Err: errors.New("boom")}, CodeGateway},
		{
			"undecodable response",
			&engine.GatewayError{Op: "buy_property", Err: fmt.Errorf("%w: missing players", engine.ErrMalformedSnapshot)},
			CodeMalformed,
		},
		{"malformed action", &engine.MalformedActionError{Index: 0, Kind: engine.ActionPayRent, Err: errors.New("missing rent")}, CodeMalformed},
		{"closed", session.ErrClosed, CodeClosed},
		{"other", errors.New("?"), CodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errorCode(tc.err))
		})
	}
}
