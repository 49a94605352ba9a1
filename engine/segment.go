package engine

import "fmt"

// DefaultJailSpace is the board cell "sent to jail" lands on.
const DefaultJailSpace = "OT"

// Board is the static board data the replayer checks segments against.
type Board interface {
	HasSpace(id string) bool
	JailSpace() string
}

// Segment is one walked hop of the acting player, used to draw movement lines.
// IsFinal marks where the arrowhead goes.
type Segment struct {
	From    string `json:"from"`
	To      string `json:"to"`
	IsFinal bool   `json:"isFinal"`
}

// Diagnostic records a non-fatal problem met while replaying a move.
type Diagnostic struct {
	Step int
	Err  error
}

func (d Diagnostic) String() string { return fmt.Sprintf("step %d: %v", d.Step, d.Err) }

// Segments derives the walked path of a move sequence. The result has one
// entry per snapshot; entry i is the hop from snapshot i-1 to snapshot i, or
// nil when no line is drawn for that step:
//
//   - entry 0, which has no prior position;
//   - a jail jump, where snapshot i shows the acting player jailed at the jail
//     space and snapshot i-1 does not;
//   - a step that does not change position;
//   - a step touching a space the board does not know (ErrUnknownSpace is
//     reported as a diagnostic and the replay goes on).
//
// The last drawn segment is final, and so is any drawn segment directly
// followed by a jail jump, so the arrowhead stops before the jail cell.
func Segments(seq MoveSequence, board Board) ([]*Segment, []Diagnostic) {
	jail := DefaultJailSpace
	if board != nil {
		jail = board.JailSpace()
	}

	var diags []Diagnostic
	out := make([]*Segment, len(seq))
	jumps := make([]bool, len(seq))
	for i := 1; i < len(seq); i++ {
		prev, cur := seq[i-1], seq[i]
		if cur.JailedAt(jail) && !prev.JailedAt(jail) {
			jumps[i] = true
			continue
		}
		from, to := prev.Acting().Position, cur.Acting().Position
		if from == to {
			continue
		}
		if board != nil {
			if missing := firstUnknown(board, from, to); missing != "" {
				diags = append(diags, Diagnostic{Step: i, Err: fmt.Errorf("%w: %q in segment %s -> %s", ErrUnknownSpace, missing, from, to)})
				continue
			}
		}
		out[i] = &Segment{From: from, To: to}
	}

	last := -1
	for i := range out {
		if out[i] == nil {
			continue
		}
		last = i
		if i+1 < len(out) && jumps[i+1] {
			out[i].IsFinal = true
		}
	}
	if last >= 0 {
		out[last].IsFinal = true
	}
	return out, diags
}

func firstUnknown(board Board, ids ...string) string {
	for _, id := range ids {
		if !board.HasSpace(id) {
			return id
		}
	}
	return ""
}
