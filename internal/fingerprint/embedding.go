package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/facegate/internal/camera"
	"github.com/kozaktomas/facegate/internal/facematch"
	"gonum.org/v1/gonum/floats"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	jpegQuality         = 90
)

// EmbeddingClient computes face embeddings using the embedding server
type EmbeddingClient struct {
	baseURL string
	client  *http.Client
}

// NewEmbeddingClient creates a new embedding client
func NewEmbeddingClient(baseURL string) *EmbeddingClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &EmbeddingClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// postMultipartImage posts JPEG data as the "file" form field.
func (c *EmbeddingClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *EmbeddingClient) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// errNoFace is returned when the server found no usable face in the frame.
var errNoFace = errors.New("no face detected")

// EmbeddingExtractor produces one-point descriptors holding the
// L2-normalized embedding of the most confident face in the frame.
type EmbeddingExtractor struct {
	client *EmbeddingClient
	logger *log.Logger
}

// NewEmbeddingExtractor creates an extractor backed by the embedding server.
func NewEmbeddingExtractor(client *EmbeddingClient, logger *log.Logger) *EmbeddingExtractor {
	if logger == nil {
		logger = log.Default()
	}
	return &EmbeddingExtractor{client: client, logger: logger}
}

// Name implements Extractor.
func (e *EmbeddingExtractor) Name() string {
	return EmbeddingName
}

// SampleFrame implements Extractor. Server failures are logged and treated
// as "no frame yet" so polling continues.
func (e *EmbeddingExtractor) SampleFrame(ctx context.Context, stream camera.Stream) (facematch.Descriptor, bool) {
	if ctx.Err() != nil || stream == nil {
		return facematch.Descriptor{}, false
	}
	img, ok := stream.Frame()
	if !ok || img.Bounds().Empty() {
		return facematch.Descriptor{}, false
	}

	point, err := e.embed(ctx, img)
	if err != nil {
		if !errors.Is(err, errNoFace) && ctx.Err() == nil {
			e.logger.Printf("fingerprint: embedding failed: %v", err)
		}
		return facematch.Descriptor{}, false
	}
	return facematch.NewDescriptor(EmbeddingName, point), true
}

func (e *EmbeddingExtractor) embed(ctx context.Context, img image.Image) (facematch.Point, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	resp, err := e.client.ComputeFaceEmbeddings(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}

	best := bestFace(resp.Faces)
	if best == nil {
		return nil, errNoFace
	}

	point := make(facematch.Point, len(best.Embedding))
	for i, v := range best.Embedding {
		point[i] = float64(v)
	}
	norm := floats.Norm(point, 2)
	if norm == 0 {
		return nil, errNoFace
	}
	floats.Scale(1/norm, point)
	return point, nil
}

// bestFace returns the detection with the highest score and a non-empty embedding.
func bestFace(faces []FaceDetection) *FaceDetection {
	var best *FaceDetection
	for i := range faces {
		f := &faces[i]
		if len(f.Embedding) == 0 {
			continue
		}
		if best == nil || f.DetScore > best.DetScore {
			best = f
		}
	}
	return best
}
