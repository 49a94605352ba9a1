package board

import (
	"encoding/json"
	"testing"

	"github.com/jason-s-yu/tycoon/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleData = `{
	"vt_max": 4,
	"track": ["BD", "1A1", "VT", "1B1"],
	"space": {
		"BD": {"orient": "SE", "x": 2, "y": 2},
		"1A1": {"orient": "S", "x": 1, "y": 2},
		"VT": {"orient": "SW", "x": 0, "y": 2},
		"1B1": {"orient": "W", "x": 0, "y": 1},
		"OT": {"orient": "SW", "x": 0.75, "y": 2}
	},
	"bds": {"1A1": {"group": "1A", "name": "Hàng Bạc", "price": 60, "rent": [2, 10, 30], "mortgage": 30, "upgrade": 50}},
	"space_labels": {"BD": "Bắt đầu"},
	"special_spaces": {"VT": "jail"}
}`

func sampleBoard(t *testing.T) *Board {
	t.Helper()
	var d Data
	require.NoError(t, json.Unmarshal([]byte(sampleData), &d))
	b, err := New(d)
	require.NoError(t, err)
	return b
}

func TestBoardLookups(t *testing.T) {
	b := sampleBoard(t)

	assert.True(t, b.HasSpace("1A1"))
	assert.True(t, b.HasSpace("OT"))
	assert.False(t, b.HasSpace("ZZ"))
	assert.Equal(t, engine.DefaultJailSpace, b.JailSpace())

	assert.Equal(t, 1, b.TrackIndex("1A1"))
	assert.Equal(t, -1, b.TrackIndex("OT"))

	pos, ok := b.Position("OT")
	require.True(t, ok)
	assert.Equal(t, 0.75, pos.X)

	p, ok := b.Property("1A1")
	require.True(t, ok)
	assert.Equal(t, 60, p.Price)

	assert.Equal(t, "Bắt đầu", b.Label("BD"))
	assert.Equal(t, "Hàng Bạc", b.Label("1A1"))
	assert.Equal(t, "VT", b.Label("VT"))
}

func TestBoardDistanceWraps(t *testing.T) {
	b := sampleBoard(t)

	d, ok := b.Distance("1A1", "1B1")
	require.True(t, ok)
	assert.Equal(t, 2, d)

	d, ok = b.Distance("1B1", "1A1")
	require.True(t, ok)
	assert.Equal(t, 2, d)

	_, ok = b.Distance("OT", "BD")
	assert.False(t, ok)
}

func TestBoardSegmentsCheckSpaces(t *testing.T) {
	b := sampleBoard(t)
	at := func(pos string) engine.Snapshot {
		return engine.Snapshot{
			Players:       map[string]engine.Player{"P": {Position: pos}},
			CurrentPlayer: "P",
		}
	}
	segs, diags := engine.Segments(engine.MoveSequence{at("BD"), at("1A1"), at("XX")}, b)
	require.NotNil(t, segs[1])
	assert.True(t, segs[1].IsFinal)
	assert.Nil(t, segs[2])
	require.Len(t, diags, 1)
	assert.ErrorIs(t, diags[0].Err, engine.ErrUnknownSpace)
}

func TestNewRejectsBadTrack(t *testing.T) {
	_, err := New(Data{})
	assert.Error(t, err)

	_, err = New(Data{Track: []string{"BD", "BD"}, Spaces: map[string]Space{"BD": {}}})
	assert.Error(t, err)

	_, err = New(Data{Track: []string{"BD"}})
	assert.Error(t, err)
}

func TestWithJailSpace(t *testing.T) {
	b, err := New(Data{Track: []string{"BD"}, Spaces: map[string]Space{"BD": {}}}, WithJailSpace("JAIL"))
	require.NoError(t, err)
	assert.Equal(t, "JAIL", b.JailSpace())
	assert.True(t, b.HasSpace("JAIL"))
}
