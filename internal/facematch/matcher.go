package facematch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Matcher decides whether two descriptors belong to the same face by
// per-point distance voting.
type Matcher struct {
	// Threshold is the maximum Euclidean distance (exclusive) for a point to vote.
	Threshold float64
	// MinVotes is the number of voting points required for a match.
	MinVotes int
}

// NewMatcher creates a matcher. The threshold only has meaning for the
// extractor it was tuned against.
func NewMatcher(threshold float64, minVotes int) *Matcher {
	if minVotes < 1 {
		minVotes = 1
	}
	return &Matcher{Threshold: threshold, MinVotes: minVotes}
}

// Votes returns how many corresponding points lie within the threshold.
// Incompatible descriptors yield 0.
func (m *Matcher) Votes(candidate, enrolled Descriptor) int {
	if !candidate.Compatible(enrolled) {
		return 0
	}
	votes := 0
	for i := range candidate.points {
		if floats.Distance(candidate.points[i], enrolled.points[i], 2) < m.Threshold {
			votes++
		}
	}
	return votes
}

// Match reports whether the candidate matches the enrolled descriptor.
func (m *Matcher) Match(candidate, enrolled Descriptor) bool {
	return m.Votes(candidate, enrolled) >= m.MinVotes
}

// ErrIncompatible is returned when descriptors differ in shape or origin.
var ErrIncompatible = errors.New("descriptors are not compatible")

// Centroid returns the point-wise mean of the given descriptors.
func Centroid(descriptors ...Descriptor) (Descriptor, error) {
	if len(descriptors) == 0 {
		return Descriptor{}, errors.New("centroid of no descriptors")
	}
	first := descriptors[0]
	if first.IsZero() {
		return Descriptor{}, fmt.Errorf("descriptor 0: %w", ErrIncompatible)
	}

	sum := first.Points()
	for i, d := range descriptors[1:] {
		if !first.Compatible(d) {
			return Descriptor{}, fmt.Errorf("descriptor %d: %w", i+1, ErrIncompatible)
		}
		for j := range sum {
			floats.Add(sum[j], d.points[j])
		}
	}
	for j := range sum {
		floats.Scale(1/float64(len(descriptors)), sum[j])
	}

	return Descriptor{extractor: first.extractor, points: sum}, nil
}
