// Package fingerprint reduces live camera frames to feature descriptors.
package fingerprint

import (
	"context"

	"github.com/kozaktomas/facegate/internal/camera"
	"github.com/kozaktomas/facegate/internal/facematch"
)

// Extractor names, also used as match profile keys.
const (
	GeometryName  = "geometry"
	EmbeddingName = "embedding"
)

// Extractor samples the current frame of a stream. It returns false until a
// displayable frame exists; repeated samples of a stable scene are close to
// each other under the extractor's match profile.
type Extractor interface {
	Name() string
	SampleFrame(ctx context.Context, stream camera.Stream) (facematch.Descriptor, bool)
}

// FaceDetection is one face returned by the embedding server.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}
