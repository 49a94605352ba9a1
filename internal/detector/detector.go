// Package detector turns dice detections from the capture camera into a roll.
package detector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jason-s-yu/tycoon/engine"
)

// ErrDiceCount is returned when a frame does not hold exactly two dice.
var ErrDiceCount = errors.New("detector: expected exactly two dice")

// Box is a detected die's bounding box in image pixels.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one die found in a frame: where it is and the face read on it.
type Detection struct {
	Box   Box `json:"box"`
	Score int `json:"score"`
}

// Frame is the detector output for one captured image. Boxes and Scores are
// parallel, as the pip model emits them.
type Frame struct {
	Boxes  []Box `json:"bboxes"`
	Scores []int `json:"scores"`
}

// Detections pairs the parallel slices of f.
func (f Frame) Detections() ([]Detection, error) {
	if len(f.Boxes) != len(f.Scores) {
		return nil, fmt.Errorf("detector: %d boxes but %d scores", len(f.Boxes), len(f.Scores))
	}
	out := make([]Detection, len(f.Boxes))
	for i := range f.Boxes {
		out[i] = Detection{Box: f.Boxes[i], Score: f.Scores[i]}
	}
	return out, nil
}

// Dice reads the roll from f.
func (f Frame) Dice() (engine.Dice, error) {
	ds, err := f.Detections()
	if err != nil {
		return engine.Dice{}, err
	}
	return Read(ds)
}

// Read orders the two detections left to right, by box centre, and returns
// them as a roll. Faces outside 1..6 are rejected.
func Read(ds []Detection) (engine.Dice, error) {
	if len(ds) != 2 {
		return engine.Dice{}, fmt.Errorf("%w, got %d", ErrDiceCount, len(ds))
	}
	sorted := []Detection{ds[0], ds[1]}
	sort.SliceStable(sorted, func(i, j int) bool {
		return centerX(sorted[i].Box) < centerX(sorted[j].Box)
	})

	d := engine.Dice{D1: sorted[0].Score, D2: sorted[1].Score}
	if err := d.Validate(); err != nil {
		return engine.Dice{}, err
	}
	return d, nil
}

func centerX(b Box) float64 { return b.X + b.W/2 }
