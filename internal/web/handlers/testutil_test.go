package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kozaktomas/facegate/internal/gate"
)

// fakeGate is a scripted Gate. Events come from the events channel.
type fakeGate struct {
	mu sync.Mutex

	snapshot  gate.Event
	enrolled  bool
	locked    bool
	remaining int

	startErr error
	clearErr error
	readErr  error

	started      []gate.Mode
	cancels      int
	clears       int
	events       chan gate.Event
	unsubscribed bool
}

func newFakeGate() *fakeGate {
	return &fakeGate{snapshot: gate.Event{Kind: gate.EventState, State: gate.Idle}}
}

func (f *fakeGate) Start(ctx context.Context, mode gate.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, mode)
	f.snapshot = gate.Event{Kind: gate.EventState, Mode: mode, State: gate.RequestingResource}
	return nil
}

func (f *fakeGate) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.snapshot = gate.Event{Kind: gate.EventState, State: gate.Idle, Reason: "canceled"}
}

func (f *fakeGate) Snapshot() gate.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeGate) IsEnrolled(ctx context.Context) (bool, error) {
	return f.enrolled, f.readErr
}

func (f *fakeGate) IsLockedOut(ctx context.Context) (bool, error) {
	return f.locked, f.readErr
}

func (f *fakeGate) RemainingLockoutMinutes(ctx context.Context) (int, error) {
	return f.remaining, f.readErr
}

func (f *fakeGate) ClearAll(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clears++
	return nil
}

func (f *fakeGate) Subscribe() <-chan gate.Event {
	return f.events
}

func (f *fakeGate) Unsubscribe(ch <-chan gate.Event) {
	f.unsubscribed = true
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
