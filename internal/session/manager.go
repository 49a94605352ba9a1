package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tycoon/engine"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("session: not found")

// Backend is the rules service as the manager needs it: the orchestrator's
// gateway plus game creation.
type Backend interface {
	engine.Gateway
	InitGame(ctx context.Context, players []string) (engine.Snapshot, error)
}

// Manager owns the live sessions of the process.
type Manager struct {
	backend Backend
	cfg     Config
	log     logrus.FieldLogger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager returns an empty manager.
func NewManager(backend Backend, cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
		cfg.Logger = log
	}
	return &Manager{
		backend:  backend,
		cfg:      cfg,
		log:      log,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create asks the rules service for a new game between players and opens a
// session on it.
func (m *Manager) Create(ctx context.Context, players []string) (*Session, error) {
	if len(players) == 0 {
		return nil, errors.New("session: no players")
	}
	initial, err := m.backend.InitGame(ctx, players)
	if err != nil {
		return nil, fmt.Errorf("init game: %w", err)
	}
	return m.Open(initial, players)
}

// Open starts a session on a snapshot the caller already holds, such as a
// game restored mid-turn.
func (m *Manager) Open(initial engine.Snapshot, players []string) (*Session, error) {
	s, err := New(initial, m.backend, players, m.cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.log.WithField("sessions", len(sessions)).Info("sessions closed")
}
