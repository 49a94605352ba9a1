package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/tycoon/engine"
)

func TestManagerCreate(t *testing.T) {
	gw := &mockBackend{}
	m := NewManager(gw, testConfig())
	defer m.Close()

	gw.On("InitGame", mock.Anything, testPlayers).
		Return(snapAt("GO", engine.NewAction(engine.RollDice{})), nil).Once()

	s, err := m.Create(context.Background(), testPlayers)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	v, err := s.View(context.Background())
	require.NoError(t, err)
	assert.True(t, v.CanRoll)
	gw.AssertExpectations(t)
}

func TestManagerCreateFailures(t *testing.T) {
	gw := &mockBackend{}
	m := NewManager(gw, testConfig())

	_, err := m.Create(context.Background(), nil)
	assert.Error(t, err)

	gw.On("InitGame", mock.Anything, mock.Anything).Return(nil, errors.New("service down")).Once()
	_, err = m.Create(context.Background(), testPlayers)
	assert.ErrorContains(t, err, "service down")
	assert.Zero(t, m.Len())
}

func TestManagerOpenMalformed(t *testing.T) {
	m := NewManager(&mockBackend{}, testConfig())
	_, err := m.Open(engine.Snapshot{}, testPlayers)
	assert.ErrorIs(t, err, engine.ErrMalformedSnapshot)
	assert.Zero(t, m.Len())
}

func TestManagerRemove(t *testing.T) {
	m := NewManager(&mockBackend{}, testConfig())
	s, err := m.Open(snapAt("GO"), testPlayers)
	require.NoError(t, err)

	require.NoError(t, m.Remove(s.ID))
	<-s.Done()
	assert.Zero(t, m.Len())

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Remove(s.ID), ErrNotFound)
	assert.ErrorIs(t, m.Remove(uuid.New()), ErrNotFound)
}

func TestManagerClose(t *testing.T) {
	m := NewManager(&mockBackend{}, testConfig())
	a, err := m.Open(snapAt("GO"), testPlayers)
	require.NoError(t, err)
	b, err := m.Open(snapAt("GO"), testPlayers)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	m.Close()
	assert.Zero(t, m.Len())
	for _, s := range []*Session{a, b} {
		select {
		case <-s.Done():
		default:
			t.Fatalf("session %s still running", s.ID)
		}
	}
}
