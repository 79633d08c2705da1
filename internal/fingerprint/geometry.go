package fingerprint

import (
	"context"
	"image"

	"github.com/kozaktomas/facegate/internal/camera"
	"github.com/kozaktomas/facegate/internal/facematch"
	"golang.org/x/image/draw"
)

// gridSize is the side of the square grid frames are reduced to.
const gridSize = 64

// region is a landmark search window in grid cells, [x0, x1) x [y0, y1).
type region struct {
	x0, y0, x1, y1 int
}

// Landmark windows on the reduced grid: left eye, right eye, mouth.
var landmarkRegions = []region{
	{x0: 8, y0: 12, x1: 32, y1: 32},
	{x0: 32, y0: 12, x1: 56, y1: 32},
	{x0: 16, y0: 38, x1: 48, y1: 58},
}

// GeometryExtractor is a deterministic placeholder for a face model. Each
// landmark is the darkness-weighted centroid of a fixed window, reported in
// a 0..100 coordinate space.
type GeometryExtractor struct{}

// NewGeometryExtractor creates the placeholder extractor.
func NewGeometryExtractor() *GeometryExtractor {
	return &GeometryExtractor{}
}

// Name implements Extractor.
func (g *GeometryExtractor) Name() string {
	return GeometryName
}

// SampleFrame implements Extractor.
func (g *GeometryExtractor) SampleFrame(ctx context.Context, stream camera.Stream) (facematch.Descriptor, bool) {
	if ctx.Err() != nil || stream == nil {
		return facematch.Descriptor{}, false
	}
	img, ok := stream.Frame()
	if !ok || img.Bounds().Empty() {
		return facematch.Descriptor{}, false
	}
	return facematch.NewDescriptor(GeometryName, Landmarks(img)...), true
}

// Landmarks computes the landmark points of an image.
func Landmarks(img image.Image) []facematch.Point {
	gray := toGrayscale(resizeImage(img, gridSize, gridSize))

	points := make([]facematch.Point, len(landmarkRegions))
	for i, r := range landmarkRegions {
		points[i] = centroid(gray, r)
	}
	return points
}

// centroid returns the darkness-weighted centre of a region, or its
// geometric centre when the region is blank.
func centroid(gray [][]float64, r region) facematch.Point {
	var sum, sx, sy float64
	for x := r.x0; x < r.x1; x++ {
		for y := r.y0; y < r.y1; y++ {
			w := 255 - gray[x][y]
			sum += w
			sx += w * (float64(x) + 0.5)
			sy += w * (float64(y) + 0.5)
		}
	}

	var cx, cy float64
	if sum == 0 {
		cx = float64(r.x0+r.x1) / 2
		cy = float64(r.y0+r.y1) / 2
	} else {
		cx = sx / sum
		cy = sy / sum
	}

	scale := 100.0 / gridSize
	return facematch.Point{cx * scale, cy * scale}
}

func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale returns luma values indexed [x][y].
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	return gray
}
