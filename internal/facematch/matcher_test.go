package facematch

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func geometry(points ...Point) Descriptor {
	return NewDescriptor("geometry", points...)
}

func TestMatcher_Match(t *testing.T) {
	enrolled := geometry(Point{30, 35}, Point{70, 35}, Point{50, 75})

	tests := []struct {
		name      string
		candidate Descriptor
		votes     int
		expected  bool
	}{
		{
			name:      "identical",
			candidate: geometry(Point{30, 35}, Point{70, 35}, Point{50, 75}),
			votes:     3,
			expected:  true,
		},
		{
			name:      "two of three close",
			candidate: geometry(Point{32, 36}, Point{71, 40}, Point{90, 10}),
			votes:     2,
			expected:  true,
		},
		{
			name:      "one of three close",
			candidate: geometry(Point{32, 36}, Point{10, 90}, Point{90, 10}),
			votes:     1,
			expected:  false,
		},
		{
			name:      "distance equal to threshold does not vote",
			candidate: geometry(Point{45, 35}, Point{85, 35}, Point{50, 75}),
			votes:     1,
			expected:  false,
		},
		{
			name:      "different extractor",
			candidate: NewDescriptor("embedding", Point{30, 35}, Point{70, 35}, Point{50, 75}),
			votes:     0,
			expected:  false,
		},
		{
			name:      "different length",
			candidate: geometry(Point{30, 35}, Point{70, 35}),
			votes:     0,
			expected:  false,
		},
		{
			name:      "empty",
			candidate: Descriptor{},
			votes:     0,
			expected:  false,
		},
	}

	m := NewMatcher(15, 2)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if votes := m.Votes(tt.candidate, enrolled); votes != tt.votes {
				t.Errorf("Votes() = %d, want %d", votes, tt.votes)
			}
			if result := m.Match(tt.candidate, enrolled); result != tt.expected {
				t.Errorf("Match() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestNewMatcher_ClampsVotes(t *testing.T) {
	m := NewMatcher(1, 0)
	if m.MinVotes != 1 {
		t.Errorf("expected MinVotes clamped to 1, got %d", m.MinVotes)
	}
}

func TestMatcher_DimensionMismatch(t *testing.T) {
	m := NewMatcher(100, 1)
	a := geometry(Point{1, 2})
	b := geometry(Point{1, 2, 3})
	if m.Match(a, b) {
		t.Error("expected points of different dimensionality not to match")
	}
}

func TestCentroid(t *testing.T) {
	result, err := Centroid(
		geometry(Point{0, 0}, Point{10, 10}),
		geometry(Point{3, 6}, Point{10, 20}),
		geometry(Point{6, 3}, Point{10, 30}),
	)
	if err != nil {
		t.Fatalf("Centroid() error = %v", err)
	}

	expected := []Point{{3, 3}, {10, 20}}
	if diff := cmp.Diff(expected, result.Points(), cmp.Comparer(func(a, b float64) bool {
		return math.Abs(a-b) < 1e-9
	})); diff != "" {
		t.Errorf("Centroid() mismatch (-want +got):\n%s", diff)
	}
	if result.Extractor() != "geometry" {
		t.Errorf("expected extractor 'geometry', got '%s'", result.Extractor())
	}
}

func TestCentroid_DoesNotMutateInputs(t *testing.T) {
	a := geometry(Point{1, 1})
	b := geometry(Point{3, 3})

	if _, err := Centroid(a, b); err != nil {
		t.Fatalf("Centroid() error = %v", err)
	}

	if diff := cmp.Diff([]Point{{1, 1}}, a.Points()); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestCentroid_Errors(t *testing.T) {
	if _, err := Centroid(); err == nil {
		t.Error("expected error for no descriptors")
	}

	_, err := Centroid(geometry(Point{1, 1}), NewDescriptor("embedding", Point{1, 1}))
	if !errors.Is(err, ErrIncompatible) {
		t.Errorf("expected ErrIncompatible, got %v", err)
	}
}

func TestDescriptor_Immutable(t *testing.T) {
	points := []Point{{1, 2}}
	d := geometry(points...)

	points[0][0] = 99
	if d.Point(0)[0] != 1 {
		t.Error("descriptor changed when the source slice was modified")
	}

	p := d.Point(0)
	p[1] = 99
	if d.Point(0)[1] != 2 {
		t.Error("descriptor changed when a returned point was modified")
	}
}

func TestDescriptor_JSON(t *testing.T) {
	d := geometry(Point{30.5, 35}, Point{70, 35.25})

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Descriptor
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.Extractor() != "geometry" || decoded.Len() != 2 || decoded.Dim() != 2 {
		t.Errorf("unexpected decoded descriptor %v", decoded)
	}
	if diff := cmp.Diff(d.Points(), decoded.Points()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestDescriptor_UnmarshalRaggedPoints(t *testing.T) {
	var d Descriptor
	err := json.Unmarshal([]byte(`{"extractor":"geometry","points":[[1,2],[3]]}`), &d)
	if err == nil {
		t.Error("expected error for ragged points")
	}
}
