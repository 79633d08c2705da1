package facematch

import (
	"encoding/json"
	"fmt"
)

// Point is one landmark in an extractor's coordinate space.
type Point []float64

// Descriptor is a fixed-shape summary of one captured frame.
// It is immutable: constructors and accessors copy the underlying points.
type Descriptor struct {
	extractor string
	points    []Point
}

// NewDescriptor creates a descriptor produced by the named extractor.
func NewDescriptor(extractor string, points ...Point) Descriptor {
	return Descriptor{
		extractor: extractor,
		points:    clonePoints(points),
	}
}

// Extractor returns the name of the extractor that produced the descriptor.
func (d Descriptor) Extractor() string {
	return d.extractor
}

// Len returns the number of points.
func (d Descriptor) Len() int {
	return len(d.points)
}

// Dim returns the dimensionality of the points, or 0 for an empty descriptor.
func (d Descriptor) Dim() int {
	if len(d.points) == 0 {
		return 0
	}
	return len(d.points[0])
}

// IsZero reports whether the descriptor holds no points.
func (d Descriptor) IsZero() bool {
	return len(d.points) == 0
}

// Point returns a copy of the i-th point.
func (d Descriptor) Point(i int) Point {
	return append(Point(nil), d.points[i]...)
}

// Points returns a copy of all points.
func (d Descriptor) Points() []Point {
	return clonePoints(d.points)
}

// Compatible reports whether two descriptors can be compared point by point.
func (d Descriptor) Compatible(other Descriptor) bool {
	if d.extractor != other.extractor || len(d.points) != len(other.points) || d.IsZero() {
		return false
	}
	for i := range d.points {
		if len(d.points[i]) != len(other.points[i]) {
			return false
		}
	}
	return true
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s%v", d.extractor, d.points)
}

type descriptorJSON struct {
	Extractor string  `json:"extractor"`
	Points    []Point `json:"points"`
}

// MarshalJSON implements json.Marshaler.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{Extractor: d.extractor, Points: d.points})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode descriptor: %w", err)
	}
	for i, p := range raw.Points {
		if len(p) != len(raw.Points[0]) {
			return fmt.Errorf("decode descriptor: point %d has %d coordinates, want %d", i, len(p), len(raw.Points[0]))
		}
	}
	d.extractor = raw.Extractor
	d.points = clonePoints(raw.Points)
	return nil
}

func clonePoints(points []Point) []Point {
	if points == nil {
		return nil
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = append(Point(nil), p...)
	}
	return out
}
