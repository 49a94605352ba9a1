// Package ws serves sessions to renderers: a small HTTP API to open games and
// a WebSocket per renderer carrying commands in and updates out.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tycoon/internal/auth"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/session"
)

const writeTimeout = 5 * time.Second

// Server routes the HTTP API and renderer connections.
type Server struct {
	sessions *session.Manager
	tokens   *auth.Manager
	board    *board.Board
	log      logrus.FieldLogger
	origins  []string
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithOriginPatterns allows cross-origin renderer connections from hosts
// matching the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// WithLogger sets the server's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer builds the router. b may be nil when no board data was loaded.
func NewServer(sessions *session.Manager, tokens *auth.Manager, b *board.Board, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		tokens:   tokens,
		board:    b,
		log:      logrus.StandardLogger(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /game_data", s.handleGameData)
	s.mux.HandleFunc("POST /sessions", s.handleCreate)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /ws", s.handleConnect)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type createRequest struct {
	Players []string `json:"players"`
}

type createResponse struct {
	SessionID uuid.UUID     `json:"session_id"`
	Token     string        `json:"token"`
	View      *session.View `json:"view"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) handleGameData(w http.ResponseWriter, _ *http.Request) {
	if s.board == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "board data not loaded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]board.Data{"game_data": s.board.Data()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}
	if len(req.Players) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "players is required"})
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Players)
	if err != nil {
		s.log.WithError(err).Warn("create session failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	token, err := s.tokens.Issue(sess.ID)
	if err != nil {
		_ = s.sessions.Remove(sess.ID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "issue token"})
		return
	}
	v, err := sess.View(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{SessionID: sess.ID, Token: token, View: &v})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authorize(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil || id != claims.SessionID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "token does not match session"})
		return
	}
	if err := s.sessions.Remove(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize reads the token from the Authorization header or the token query
// parameter. Browsers cannot set headers on a WebSocket handshake.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "token required"})
		return auth.Claims{}, false
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return auth.Claims{}, false
	}
	return claims, true
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authorize(w, r)
	if !ok {
		return
	}
	sess, err := s.sessions.Get(claims.SessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer c.CloseNow()

	log := s.log.WithFields(logrus.Fields{"session": sess.ID.String(), "remote": r.RemoteAddr})
	log.Info("renderer connected")
	s.serveConn(r.Context(), c, sess, log)
	log.Info("renderer disconnected")
}

// serveConn sends the current view, then streams updates newer than it
// while answering commands until either side goes away.
func (s *Server) serveConn(ctx context.Context, c *websocket.Conn, sess *session.Session, log logrus.FieldLogger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before reading the view so nothing falls between them.
	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	v, err := sess.View(ctx)
	if err != nil {
		c.Close(websocket.StatusGoingAway, "session closed")
		return
	}
	if err := write(ctx, c, session.Update{Type: session.UpdateState, Seq: v.Seq, View: &v}); err != nil {
		return
	}

	go func() {
		defer cancel()
		for u := range updates {
			if u.Seq <= v.Seq {
				continue
			}
			if err := write(ctx, c, u); err != nil {
				log.WithError(err).Debug("update write failed")
				return
			}
			if u.Type == session.UpdateClosed {
				break
			}
		}
		c.Close(websocket.StatusGoingAway, "session closed")
	}()

	for {
		var cmd Command
		if err := wsjson.Read(ctx, c, &cmd); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.WithError(err).Debug("read failed")
			}
			return
		}
		reply := s.handleCommand(ctx, sess, cmd, log)
		if err := write(ctx, c, reply); err != nil {
			return
		}
	}
}

func (s *Server) handleCommand(ctx context.Context, sess *session.Session, cmd Command, log logrus.FieldLogger) Reply {
	view, err := dispatch(ctx, sess, cmd)
	if err != nil {
		code := errorCode(err)
		log.WithFields(logrus.Fields{"command": cmd.Type, "code": code}).WithError(err).Debug("command rejected")
		return Reply{Type: ReplyError, ID: cmd.ID, Code: code, Error: err.Error()}
	}
	if view != nil {
		return Reply{Type: ReplyView, ID: cmd.ID, View: view}
	}
	return Reply{Type: ReplyAck, ID: cmd.ID}
}

func write(ctx context.Context, c *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
