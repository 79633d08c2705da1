// Package mock provides mock implementations of camera interfaces for testing.
package mock

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/kozaktomas/facegate/internal/camera"
)

// MockDevice is a mock implementation of camera.Device
type MockDevice struct {
	mu      sync.Mutex
	devices []camera.DeviceInfo
	streams []*MockStream
	opens   int
	lists   int

	// Error injection
	ListError error
	OpenError error

	// Block, when set, makes Open wait for it to be closed, ignoring ctx.
	// This models a permission prompt the host cannot abort.
	Block chan struct{}

	// FramesAfter is how many Frame calls return nothing before a frame is ready.
	FramesAfter int
	// Frame is served by every stream once ready. Defaults to a gray 64x64 image.
	Frame image.Image
}

// NewMockDevice creates a mock device listing the given devices.
func NewMockDevice(devices ...camera.DeviceInfo) *MockDevice {
	if len(devices) == 0 {
		devices = []camera.DeviceInfo{{ID: "cam0", Label: "Mock Camera"}}
	}
	return &MockDevice{devices: devices}
}

// List returns the configured devices.
func (m *MockDevice) List(ctx context.Context) ([]camera.DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.ListError != nil {
		return nil, m.ListError
	}
	return append([]camera.DeviceInfo(nil), m.devices...), nil
}

// Open returns a new MockStream.
func (m *MockDevice) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	m.mu.Lock()
	m.opens++
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenError != nil {
		return nil, m.OpenError
	}
	frame := m.Frame
	if frame == nil {
		frame = grayFrame(64, 64, 128)
	}
	s := &MockStream{DeviceID: c.DeviceID, frame: frame, readyAfter: m.FramesAfter}
	m.streams = append(m.streams, s)
	return s, nil
}

// Opens returns how many times Open was called.
func (m *MockDevice) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Lists returns how many times List was called.
func (m *MockDevice) Lists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

// Streams returns every stream handed out so far.
func (m *MockDevice) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockStream(nil), m.streams...)
}

// MockStream is a mock implementation of camera.Stream
type MockStream struct {
	DeviceID string

	mu         sync.Mutex
	frame      image.Image
	readyAfter int
	calls      int
	closes     int
}

// Frame returns the configured frame once enough calls have been made.
func (s *MockStream) Frame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.readyAfter {
		return nil, false
	}
	return s.frame, true
}

// Close records the close.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes returns how many times Close was called.
func (s *MockStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func grayFrame(w, h int, level uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	return img
}
