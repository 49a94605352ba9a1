// Package board holds the static board data served by the rules service.
package board

import (
	"fmt"

	"github.com/jason-s-yu/tycoon/engine"
)

// Space is a cell's drawing position on the board grid.
type Space struct {
	Orient string  `json:"orient"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Property is the printed title deed of a property.
type Property struct {
	Group    string `json:"group"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Rent     []int  `json:"rent"`
	Mortgage int    `json:"mortgage"`
	Upgrade  int    `json:"upgrade"`
}

// Card is a chance or community card.
type Card struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Data is the game data document returned by GET /game_data.
type Data struct {
	VTMax         int                 `json:"vt_max"`
	Track         []string            `json:"track"`
	Spaces        map[string]Space    `json:"space"`
	Properties    map[string]Property `json:"bds"`
	SpaceLabels   map[string]string   `json:"space_labels"`
	SpecialSpaces map[string]string   `json:"special_spaces"`
	KV            map[string]Card     `json:"kv"`
	CH            map[string]Card     `json:"ch"`
}

// Board answers the lookups the replayer and the view need.
// It implements engine.Board.
type Board struct {
	data  Data
	jail  string
	index map[string]int
}

var _ engine.Board = (*Board)(nil)

// Option configures a Board.
type Option func(*Board)

// WithJailSpace overrides the cell a jailed player is placed on.
func WithJailSpace(id string) Option {
	return func(b *Board) { b.jail = id }
}

// New indexes d. The track must be non-empty, free of repeats, and every
// track cell must have a drawing position. The jail cell is off-track.
func New(d Data, opts ...Option) (*Board, error) {
	if len(d.Track) == 0 {
		return nil, fmt.Errorf("board: empty track")
	}
	b := &Board{data: d, jail: engine.DefaultJailSpace, index: make(map[string]int, len(d.Track))}
	for _, opt := range opts {
		opt(b)
	}
	for i, id := range d.Track {
		if _, dup := b.index[id]; dup {
			return nil, fmt.Errorf("board: space %q appears twice on the track", id)
		}
		if _, ok := d.Spaces[id]; !ok {
			return nil, fmt.Errorf("board: track space %q has no position", id)
		}
		b.index[id] = i
	}
	return b, nil
}

// HasSpace reports whether id is a drawable cell: a track cell or the jail.
func (b *Board) HasSpace(id string) bool {
	if id == b.jail {
		return true
	}
	_, ok := b.data.Spaces[id]
	return ok
}

// JailSpace returns the cell a jailed player sits on.
func (b *Board) JailSpace() string { return b.jail }

// Position returns the drawing position of id.
func (b *Board) Position(id string) (Space, bool) {
	s, ok := b.data.Spaces[id]
	return s, ok
}

// TrackIndex returns the index of id on the track, or -1 for off-track cells.
func (b *Board) TrackIndex(id string) int {
	if i, ok := b.index[id]; ok {
		return i
	}
	return -1
}

// Distance returns the number of forward steps from one track cell to
// another, wrapping past the start.
func (b *Board) Distance(from, to string) (int, bool) {
	i, j := b.TrackIndex(from), b.TrackIndex(to)
	if i < 0 || j < 0 {
		return 0, false
	}
	n := len(b.data.Track)
	return ((j-i)%n + n) % n, true
}

// Property returns the title deed of a property cell.
func (b *Board) Property(id string) (Property, bool) {
	p, ok := b.data.Properties[id]
	return p, ok
}

// Label returns the display label of a cell, falling back to its id.
func (b *Board) Label(id string) string {
	if l, ok := b.data.SpaceLabels[id]; ok && l != "" {
		return l
	}
	if p, ok := b.data.Properties[id]; ok && p.Name != "" {
		return p.Name
	}
	return id
}

// Data returns the document the board was built from.
func (b *Board) Data() Data { return b.data }
