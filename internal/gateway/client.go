// Package gateway is the HTTP/JSON client of the rules service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jason-s-yu/tycoon/engine"
	"github.com/jason-s-yu/tycoon/internal/board"
)

const tracerName = "github.com/jason-s-yu/tycoon/internal/gateway"

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

// Client calls the rules service. It implements engine.Gateway.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     logrus.FieldLogger
	tracer  trace.Tracer
}

var _ engine.Gateway = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every call. Zero leaves calls bounded only by their context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger calls are reported to.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: base url %q is not absolute", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		base:   u,
		http:   http.DefaultClient,
		log:    logrus.StandardLogger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Wire messages
// ---------------------------------------------------------------------------

type stateRequest struct {
	GameState json.RawMessage `json:"game_state"`
}

type diceRequest struct {
	GameState json.RawMessage `json:"game_state"`
	Dice1     int             `json:"dice1"`
	Dice2     int             `json:"dice2"`
}

type buyRequest struct {
	GameState  json.RawMessage `json:"game_state"`
	PropertyID string          `json:"property_id"`
	Buy        bool            `json:"buy"`
}

type propertyRequest struct {
	GameState  json.RawMessage `json:"game_state"`
	PropertyID string          `json:"property_id"`
}

type jailFineRequest struct {
	GameState json.RawMessage `json:"game_state"`
	Dice1     *int            `json:"dice1,omitempty"`
	Dice2     *int            `json:"dice2,omitempty"`
}

type initRequest struct {
	Players []string `json:"players"`
}

type stateResponse struct {
	NewGameState json.RawMessage `json:"new_game_state"`
}

type moveResponse struct {
	IntermediateStates []json.RawMessage `json:"intermediate_states"`
}

type jailFineResponse struct {
	NewGameState json.RawMessage `json:"new_game_state"`
	ShouldMove   bool            `json:"should_move"`
	Dice1        *int            `json:"dice1"`
	Dice2        *int            `json:"dice2"`
}

type initResponse struct {
	GameState json.RawMessage `json:"game_state"`
}

type gameDataResponse struct {
	GameData board.Data `json:"game_data"`
}

// ---------------------------------------------------------------------------
// engine.Gateway
// ---------------------------------------------------------------------------

// MoveWithDice implements engine.Gateway.
func (c *Client) MoveWithDice(ctx context.Context, s engine.Snapshot, d engine.Dice) (engine.MoveSequence, error) {
	const op = "move_with_dice"
	gs, err := MarshalSnapshot(s)
	if err != nil {
		return nil, &engine.GatewayError{Op: op, Err: err}
	}
	var resp moveResponse
	if err := c.call(ctx, op, http.MethodPost, "/move_with_dice", diceRequest{GameState: gs, Dice1: d.D1, Dice2: d.D2}, &resp); err != nil {
		return nil, err
	}
	seq, err := unmarshalSequence(resp.IntermediateStates)
	if err != nil {
		return nil, err
	}
	return seq, nil
}

// NextTurn implements engine.Gateway.
func (c *Client) NextTurn(ctx context.Context, s engine.Snapshot) (engine.Snapshot, error) {
	return c.stateCall(ctx, "next_turn", s, func(gs json.RawMessage) any { return stateRequest{GameState: gs} })
}

// BuyProperty implements engine.Gateway.
func (c *Client) BuyProperty(ctx context.Context, s engine.Snapshot, propertyID string, buy bool) (engine.Snapshot, error) {
	return c.stateCall(ctx, "buy_property", s, func(gs json.RawMessage) any {
		return buyRequest{GameState: gs, PropertyID: propertyID, Buy: buy}
	})
}

// PayRent implements engine.Gateway.
func (c *Client) PayRent(ctx context.Context, s engine.Snapshot, propertyID string) (engine.Snapshot, error) {
	return c.stateCall(ctx, "pay_rent", s, func(gs json.RawMessage) any {
		return propertyRequest{GameState: gs, PropertyID: propertyID}
	})
}

// PayTax implements engine.Gateway.
func (c *Client) PayTax(ctx context.Context, s engine.Snapshot) (engine.Snapshot, error) {
	return c.stateCall(ctx, "pay_tax", s, func(gs json.RawMessage) any { return stateRequest{GameState: gs} })
}

// PayJailFine implements engine.Gateway.
func (c *Client) PayJailFine(ctx context.Context, s engine.Snapshot, d *engine.Dice) (engine.JailFineResult, error) {
	const op = "pay_jail_fine"
	gs, err := MarshalSnapshot(s)
	if err != nil {
		return engine.JailFineResult{}, &engine.GatewayError{Op: op, Err: err}
	}
	req := jailFineRequest{GameState: gs}
	if d != nil {
		req.Dice1, req.Dice2 = &d.D1, &d.D2
	}

	var resp jailFineResponse
	if err := c.call(ctx, op, http.MethodPost, "/pay_jail_fine", req, &resp); err != nil {
		return engine.JailFineResult{}, err
	}
	next, err := UnmarshalSnapshot(resp.NewGameState)
	if err != nil {
		return engine.JailFineResult{}, err
	}

	res := engine.JailFineResult{Snapshot: next, ShouldMove: resp.ShouldMove}
	if resp.Dice1 != nil && resp.Dice2 != nil {
		dice := engine.Dice{D1: *resp.Dice1, D2: *resp.Dice2}
		if err := dice.Validate(); err != nil {
			return engine.JailFineResult{}, fmt.Errorf("%w: %v", engine.ErrMalformedSnapshot, err)
		}
		res.Dice = &dice
	}
	return res, nil
}

// ManageProperty implements engine.Gateway.
func (c *Client) ManageProperty(ctx context.Context, s engine.Snapshot, op engine.PropertyOp, propertyID string) (engine.Snapshot, error) {
	return c.stateCall(ctx, op.String()+"_property", s, func(gs json.RawMessage) any {
		return propertyRequest{GameState: gs, PropertyID: propertyID}
	})
}

// ---------------------------------------------------------------------------
// Session setup
// ---------------------------------------------------------------------------

// InitGame asks the service for the opening state of a game between players,
// in turn order.
func (c *Client) InitGame(ctx context.Context, players []string) (engine.Snapshot, error) {
	const op = "init_game"
	if len(players) == 0 {
		return engine.Snapshot{}, fmt.Errorf("gateway: init game: no players")
	}
	var resp initResponse
	if err := c.call(ctx, op, http.MethodPost, "/init_game", initRequest{Players: players}, &resp); err != nil {
		return engine.Snapshot{}, err
	}
	return UnmarshalSnapshot(resp.GameState)
}

// GameData fetches the static board document.
func (c *Client) GameData(ctx context.Context) (board.Data, error) {
	var resp gameDataResponse
	if err := c.call(ctx, "game_data", http.MethodGet, "/game_data", nil, &resp); err != nil {
		return board.Data{}, err
	}
	return resp.GameData, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) stateCall(ctx context.Context, op string, s engine.Snapshot, build func(json.RawMessage) any) (engine.Snapshot, error) {
	gs, err := MarshalSnapshot(s)
	if err != nil {
		return engine.Snapshot{}, &engine.GatewayError{Op: op, Err: err}
	}
	var resp stateResponse
	if err := c.call(ctx, op, http.MethodPost, "/"+op, build(gs), &resp); err != nil {
		return engine.Snapshot{}, err
	}
	return UnmarshalSnapshot(resp.NewGameState)
}

// call performs one request and decodes the JSON response into out. Every
// failure is returned as *engine.GatewayError; nothing is retried.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) (err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "rules."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	start := time.Now()
	status := 0
	defer func() {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		entry := c.log.WithFields(logrus.Fields{"op": op, "status": status, "elapsed": time.Since(start)})
		if err != nil {
			entry.WithError(err).Warn("rules service call failed")
			return
		}
		entry.Debug("rules service call")
	}()

	var body io.Reader
	if in != nil {
		raw, merr := json.Marshal(in)
		if merr != nil {
			return &engine.GatewayError{Op: op, Err: fmt.Errorf("encode request: %w", merr)}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return &engine.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return &engine.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &engine.GatewayError{Op: op, Status: resp.StatusCode, Err: errors.New(errorDetail(detail, resp.Status))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &engine.GatewayError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorDetail extracts FastAPI's {"detail": ...} message when present.
func errorDetail(body []byte, fallback string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		return string(payload.Detail)
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fallback
}
