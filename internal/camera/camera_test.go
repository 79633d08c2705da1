package camera_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/camera"
	"github.com/kozaktomas/facegate/internal/camera/mock"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAcquire_Success(t *testing.T) {
	dev := mock.NewMockDevice()
	r := camera.NewResource(dev)

	h, err := r.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if h.Stream() == nil {
		t.Fatal("expected a stream")
	}
	if h.Device().ID != "cam0" {
		t.Errorf("expected device cam0, got '%s'", h.Device().ID)
	}

	r.Release(h)
	r.Release(h)

	if closes := dev.Streams()[0].Closes(); closes != 1 {
		t.Errorf("expected exactly one close, got %d", closes)
	}
}

func TestRelease_NilHandle(t *testing.T) {
	r := camera.NewResource(mock.NewMockDevice())
	r.Release(nil)
}

func TestAcquire_ClassifiesOpenErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected camera.Kind
	}{
		{"permission", camera.ErrPermission, camera.KindPermissionDenied},
		{"busy", camera.ErrBusy, camera.KindAlreadyInUse},
		{"constraint", camera.ErrConstraint, camera.KindConstraintUnsatisfiable},
		{"no device", camera.ErrNoDevice, camera.KindNotFound},
		{"other", errors.New("driver exploded"), camera.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := mock.NewMockDevice()
			dev.OpenError = tt.err
			r := camera.NewResource(dev)

			_, err := r.Acquire(context.Background(), time.Second)
			if kind := camera.KindOf(err); kind != tt.expected {
				t.Errorf("expected kind %s, got %s (err=%v)", tt.expected, kind, err)
			}
		})
	}
}

func TestAcquire_NoDevices(t *testing.T) {
	dev := mock.NewMockDevice()
	r := camera.NewResource(emptyDevice{dev})

	_, err := r.Acquire(context.Background(), time.Second)
	if kind := camera.KindOf(err); kind != camera.KindNotFound {
		t.Errorf("expected not_found, got %s", kind)
	}
	if dev.Opens() != 0 {
		t.Errorf("expected no open attempts, got %d", dev.Opens())
	}
}

func TestAcquire_NoAPI(t *testing.T) {
	r := camera.NewResource(nil)

	if r.Available() {
		t.Error("expected resource without device to be unavailable")
	}
	_, err := r.Acquire(context.Background(), time.Second)
	if kind := camera.KindOf(err); kind != camera.KindAPIUnavailable {
		t.Errorf("expected api_unavailable, got %s", kind)
	}
}

func TestAcquire_TimeoutDrainsLateStream(t *testing.T) {
	dev := mock.NewMockDevice()
	dev.Block = make(chan struct{})
	r := camera.NewResource(dev)

	start := time.Now()
	_, err := r.Acquire(context.Background(), 20*time.Millisecond)
	if kind := camera.KindOf(err); kind != camera.KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Acquire took %v, expected it to return at the timeout", elapsed)
	}

	close(dev.Block)

	waitFor(t, func() bool {
		streams := dev.Streams()
		return len(streams) == 1 && streams[0].Closes() == 1
	})
}

func TestAcquire_CancelDrainsLateStream(t *testing.T) {
	dev := mock.NewMockDevice()
	dev.Block = make(chan struct{})
	r := camera.NewResource(dev)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Acquire(ctx, time.Minute)
		done <- err
	}()

	waitFor(t, func() bool { return dev.Opens() == 1 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(dev.Block)
	waitFor(t, func() bool {
		streams := dev.Streams()
		return len(streams) == 1 && streams[0].Closes() == 1
	})
}

func TestIsCameraPresent(t *testing.T) {
	t.Run("device listed", func(t *testing.T) {
		r := camera.NewResource(mock.NewMockDevice())
		if !r.IsCameraPresent(context.Background()) {
			t.Error("expected camera to be present")
		}
	})

	t.Run("list error", func(t *testing.T) {
		dev := mock.NewMockDevice()
		dev.ListError = errors.New("enumeration failed")
		r := camera.NewResource(dev)
		if r.IsCameraPresent(context.Background()) {
			t.Error("expected listing failure to report absence")
		}
	})

	t.Run("no API", func(t *testing.T) {
		r := camera.NewResource(nil)
		if r.IsCameraPresent(context.Background()) {
			t.Error("expected no camera without API")
		}
	})

	t.Run("never opens", func(t *testing.T) {
		dev := mock.NewMockDevice()
		r := camera.NewResource(dev)
		r.IsCameraPresent(context.Background())
		if dev.Opens() != 0 {
			t.Errorf("expected no opens, got %d", dev.Opens())
		}
	})
}

func TestAcquire_PreferredLabel(t *testing.T) {
	dev := mock.NewMockDevice(
		camera.DeviceInfo{ID: "rear", Label: "Rear Camera"},
		camera.DeviceInfo{ID: "front", Label: "Přední_Kamera"},
	)
	r := camera.NewResource(dev, camera.WithPreferredLabel("predni kamera"))

	h, err := r.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer r.Release(h)

	if h.Device().ID != "front" {
		t.Errorf("expected preferred device 'front', got '%s'", h.Device().ID)
	}
}

// emptyDevice lists no devices but forwards Open so the test can count calls.
type emptyDevice struct {
	*mock.MockDevice
}

func (emptyDevice) List(ctx context.Context) ([]camera.DeviceInfo, error) {
	return nil, nil
}
