package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/tycoon/engine"
)

// Keys of the game state object the client interprets. Every other key is
// kept verbatim in Snapshot.Extra and sent back unchanged.
const (
	keyPlayers        = "players"
	keyCurrentPlayer  = "current_player"
	keyProperties     = "bds"
	keyPendingActions = "pending_actions"
)

// MarshalSnapshot encodes s as the rules service's game state object.
func MarshalSnapshot(s engine.Snapshot) (json.RawMessage, error) {
	obj := make(map[string]any, len(s.Extra)+4)
	for k, v := range s.Extra {
		obj[k] = v
	}

	players := s.Players
	if players == nil {
		players = map[string]engine.Player{}
	}
	props := s.Properties
	if props == nil {
		props = map[string]engine.Property{}
	}
	actions := make([]engine.PendingAction, len(s.PendingActions))
	for i, a := range s.PendingActions {
		if a.Data == nil {
			// The service expects an object for every payload.
			a.Data = json.RawMessage(`{}`)
		}
		actions[i] = a
	}

	obj[keyPlayers] = players
	obj[keyCurrentPlayer] = s.CurrentPlayer
	obj[keyProperties] = props
	obj[keyPendingActions] = actions

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode game state: %w", err)
	}
	return raw, nil
}

// UnmarshalSnapshot decodes a game state object. Structural problems are
// reported as engine.ErrMalformedSnapshot.
func UnmarshalSnapshot(raw json.RawMessage) (engine.Snapshot, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return engine.Snapshot{}, fmt.Errorf("%w: %v", engine.ErrMalformedSnapshot, err)
	}
	if obj == nil {
		return engine.Snapshot{}, fmt.Errorf("%w: game state is null", engine.ErrMalformedSnapshot)
	}

	var s engine.Snapshot
	fields := []struct {
		key    string
		target any
	}{
		{keyPlayers, &s.Players},
		{keyCurrentPlayer, &s.CurrentPlayer},
		{keyProperties, &s.Properties},
		{keyPendingActions, &s.PendingActions},
	}
	for _, f := range fields {
		v, ok := obj[f.key]
		if !ok {
			if f.key == keyPendingActions || f.key == keyProperties {
				continue
			}
			return engine.Snapshot{}, fmt.Errorf("%w: missing %q", engine.ErrMalformedSnapshot, f.key)
		}
		if err := json.Unmarshal(v, f.target); err != nil {
			return engine.Snapshot{}, fmt.Errorf("%w: %s: %v", engine.ErrMalformedSnapshot, f.key, err)
		}
		delete(obj, f.key)
	}
	if s.Properties == nil {
		s.Properties = map[string]engine.Property{}
	}
	if len(obj) > 0 {
		s.Extra = obj
	}
	return s, nil
}

func unmarshalSequence(raws []json.RawMessage) (engine.MoveSequence, error) {
	seq := make(engine.MoveSequence, len(raws))
	for i, raw := range raws {
		s, err := UnmarshalSnapshot(raw)
		if err != nil {
			return nil, fmt.Errorf("intermediate state %d: %w", i, err)
		}
		seq[i] = s
	}
	return seq, nil
}
