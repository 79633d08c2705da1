// Package camera acquires and releases capture devices with a bounded
// timeout and maps host failures onto a closed set of error kinds.
package camera

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"
)

// DefaultTimeout is how long Acquire waits for a device to start.
const DefaultTimeout = 8 * time.Second

// DeviceInfo describes a capture device without opening it.
type DeviceInfo struct {
	ID    string
	Label string
}

// Constraints narrows which device and mode Open may use.
type Constraints struct {
	DeviceID  string
	MinWidth  int
	MinHeight int
}

// Stream is a live video feed.
type Stream interface {
	// Frame returns the latest displayable frame, or false if none exists yet.
	Frame() (image.Image, bool)
	Close() error
}

// Device is the host capture API.
type Device interface {
	// List enumerates devices without requesting permission.
	List(ctx context.Context) ([]DeviceInfo, error)
	// Open starts a stream. It may block on a permission prompt.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Handle is an acquired stream. It is released at most once.
type Handle struct {
	stream Stream
	device DeviceInfo
	once   sync.Once
}

// Stream returns the live feed, or nil for a nil handle.
func (h *Handle) Stream() Stream {
	if h == nil {
		return nil
	}
	return h.stream
}

// Device returns the device the handle was acquired from.
func (h *Handle) Device() DeviceInfo {
	return h.device
}

// Resource owns access to one Device.
type Resource struct {
	device      Device
	preferLabel string
	constraints Constraints
	logger      *log.Logger
}

// Option configures a Resource.
type Option func(*Resource)

// WithPreferredLabel selects the device whose label matches when several exist.
func WithPreferredLabel(label string) Option {
	return func(r *Resource) {
		r.preferLabel = label
	}
}

// WithConstraints sets minimum capture dimensions passed to Open.
func WithConstraints(c Constraints) Option {
	return func(r *Resource) {
		r.constraints = c
	}
}

// WithLogger sets the logger for background release failures.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resource) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResource creates a Resource. A nil device means the host has no
// capture API at all.
func NewResource(device Device, opts ...Option) *Resource {
	r := &Resource{
		device: device,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether a capture API exists.
func (r *Resource) Available() bool {
	return r != nil && r.device != nil
}

// IsCameraPresent reports whether at least one device is listed. It never
// opens a device and treats every listing failure as absence.
func (r *Resource) IsCameraPresent(ctx context.Context) bool {
	if !r.Available() {
		return false
	}
	devices, err := r.device.List(ctx)
	if err != nil {
		return false
	}
	return len(devices) > 0
}

type openResult struct {
	stream Stream
	err    error
}

// Acquire opens a device, racing it against timeout. If the timer or ctx
// wins, the open keeps running in the background and any stream it produces
// is closed when it arrives.
func (r *Resource) Acquire(ctx context.Context, timeout time.Duration) (*Handle, error) {
	if !r.Available() {
		return nil, &Error{Kind: KindAPIUnavailable, Message: "no capture API"}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	devices, err := r.device.List(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	if len(devices) == 0 {
		return nil, &Error{Kind: KindNotFound, Message: "no camera found", Err: ErrNoDevice}
	}
	info := pickDevice(devices, r.preferLabel)

	constraints := r.constraints
	constraints.DeviceID = info.ID

	openCtx, cancelOpen := context.WithCancel(ctx)
	results := make(chan openResult, 1)
	go func() {
		stream, err := r.device.Open(openCtx, constraints)
		results <- openResult{stream: stream, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		cancelOpen()
		if res.err != nil {
			r.closeStream(res.stream)
			return nil, Classify(res.err)
		}
		if res.stream == nil {
			return nil, &Error{Kind: KindUnknown, Message: "device returned no stream"}
		}
		return &Handle{stream: res.stream, device: info}, nil

	case <-timer.C:
		cancelOpen()
		go r.drain(results)
		return nil, &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("camera did not start within %s", timeout),
			Err:     context.DeadlineExceeded,
		}

	case <-ctx.Done():
		cancelOpen()
		go r.drain(results)
		return nil, ctx.Err()
	}
}

// drain waits for an abandoned open and closes whatever it produced.
func (r *Resource) drain(results <-chan openResult) {
	res := <-results
	if res.stream != nil {
		r.logger.Printf("camera: closing stream that started after acquisition was abandoned")
		r.closeStream(res.stream)
	}
}

// Release closes the handle's stream. Safe on nil and repeated calls.
func (r *Resource) Release(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		r.closeStream(h.stream)
	})
}

func (r *Resource) closeStream(s Stream) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		r.logger.Printf("camera: failed to close stream: %v", err)
	}
}
