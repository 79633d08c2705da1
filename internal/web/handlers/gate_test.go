package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/gate"
)

func TestGateHandler_Status(t *testing.T) {
	tests := []struct {
		name          string
		enrolled      bool
		locked        bool
		remaining     int
		wantRemaining float64
	}{
		{"fresh", false, false, 0, 0},
		{"enrolled", true, false, 0, 0},
		{"locked out", true, true, 26, 26},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newFakeGate()
			g.enrolled, g.locked, g.remaining = tc.enrolled, tc.locked, tc.remaining
			handler := NewGateHandler(g)

			recorder := httptest.NewRecorder()
			handler.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/gate/status", nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var result map[string]any
			parseJSONResponse(t, recorder, &result)
			if result["state"] != "idle" {
				t.Errorf("expected state 'idle', got %v", result["state"])
			}
			if result["enrolled"] != tc.enrolled {
				t.Errorf("expected enrolled %v, got %v", tc.enrolled, result["enrolled"])
			}
			if result["locked_out"] != tc.locked {
				t.Errorf("expected locked_out %v, got %v", tc.locked, result["locked_out"])
			}
			if result["remaining_minutes"] != tc.wantRemaining {
				t.Errorf("expected remaining_minutes %v, got %v", tc.wantRemaining, result["remaining_minutes"])
			}
		})
	}
}

func TestGateHandler_StatusStorageError(t *testing.T) {
	g := newFakeGate()
	g.readErr = errors.New("disk gone")
	handler := NewGateHandler(g)

	recorder := httptest.NewRecorder()
	handler.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/gate/status", nil))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to read enrollment")
}

func TestGateHandler_StartSession(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		startErr   error
		wantStatus int
		wantMode   gate.Mode
		wantError  string
	}{
		{"enroll", `{"mode":"enroll"}`, nil, http.StatusAccepted, gate.Enrollment, ""},
		{"verify", `{"mode":"verify"}`, nil, http.StatusAccepted, gate.Verification, ""},
		{"long form", `{"mode":"Verification"}`, nil, http.StatusAccepted, gate.Verification, ""},
		{"bad mode", `{"mode":"unlock"}`, nil, http.StatusBadRequest, 0, "mode must be enroll or verify"},
		{"missing mode", `{}`, nil, http.StatusBadRequest, 0, "mode must be enroll or verify"},
		{"bad json", `{"mode":`, nil, http.StatusBadRequest, 0, errInvalidRequestBody},
		{"unknown field", `{"mode":"verify","pin":"1234"}`, nil, http.StatusBadRequest, 0, errInvalidRequestBody},
		{"active", `{"mode":"verify"}`, gate.ErrSessionActive, http.StatusConflict, 0, gate.ErrSessionActive.Error()},
		{"other error", `{"mode":"verify"}`, errors.New("boom"), http.StatusInternalServerError, 0, "failed to start session"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newFakeGate()
			g.startErr = tc.startErr
			handler := NewGateHandler(g)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/gate/sessions", bytes.NewBufferString(tc.body))
			recorder := httptest.NewRecorder()
			handler.StartSession(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantError != "" {
				assertJSONError(t, recorder, tc.wantError)
				if len(g.started) != 0 {
					t.Errorf("expected no session started, got %v", g.started)
				}
				return
			}

			if len(g.started) != 1 || g.started[0] != tc.wantMode {
				t.Fatalf("expected one %s session, got %v", tc.wantMode, g.started)
			}
			var result map[string]any
			parseJSONResponse(t, recorder, &result)
			if result["state"] != "requesting_resource" {
				t.Errorf("expected snapshot state 'requesting_resource', got %v", result["state"])
			}
			if result["mode"] != tc.wantMode.String() {
				t.Errorf("expected snapshot mode %q, got %v", tc.wantMode, result["mode"])
			}
		})
	}
}

func TestGateHandler_CancelSession(t *testing.T) {
	g := newFakeGate()
	handler := NewGateHandler(g)

	recorder := httptest.NewRecorder()
	handler.CancelSession(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/gate/sessions/current", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	if g.cancels != 1 {
		t.Errorf("expected 1 cancel, got %d", g.cancels)
	}
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["state"] != "idle" || result["reason"] != "canceled" {
		t.Errorf("expected canceled idle snapshot, got %v", result)
	}
}

func TestGateHandler_ClearEnrollment(t *testing.T) {
	tests := []struct {
		name       string
		clearErr   error
		wantStatus int
		wantClears int
	}{
		{"idle", nil, http.StatusOK, 1},
		{"active", gate.ErrSessionActive, http.StatusConflict, 0},
		{"storage", errors.New("locked database"), http.StatusInternalServerError, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newFakeGate()
			g.clearErr = tc.clearErr
			handler := NewGateHandler(g)

			recorder := httptest.NewRecorder()
			handler.ClearEnrollment(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/gate/enrollment", nil))

			assertStatusCode(t, recorder, tc.wantStatus)
			if g.clears != tc.wantClears {
				t.Errorf("expected %d clears, got %d", tc.wantClears, g.clears)
			}
		})
	}
}

func TestGateHandler_EventsStreamsUntilClosed(t *testing.T) {
	g := newFakeGate()
	g.events = make(chan gate.Event, 2)
	g.events <- gate.Event{Kind: gate.EventState, State: gate.Capturing, Round: 1, Rounds: 1}
	g.events <- gate.Event{Kind: gate.EventProgress, State: gate.Capturing, Progress: 1}
	close(g.events)
	handler := NewGateHandler(g)

	recorder := httptest.NewRecorder()
	handler.Events(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/gate/events", nil))

	assertContentType(t, recorder, "text/event-stream")
	if !g.unsubscribed {
		t.Error("expected the listener to be removed")
	}

	body := recorder.Body.String()
	var kinds []string
	for line := range strings.SplitSeq(body, "\n") {
		if kind, ok := strings.CutPrefix(line, "event: "); ok {
			kinds = append(kinds, kind)
		}
	}
	want := []string{"status", "state", "progress"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("expected events %v, got %v\nBody: %s", want, kinds, body)
	}
	if !strings.Contains(body, `"state":"capturing"`) {
		t.Errorf("expected a capturing event, got %s", body)
	}
}

func TestGateHandler_EventsStopsOnDisconnect(t *testing.T) {
	g := newFakeGate()
	g.events = make(chan gate.Event)
	handler := NewGateHandler(g)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gate/events", nil).WithContext(ctx)
	recorder := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.Events(recorder, req)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the client went away")
	}
	if !g.unsubscribed {
		t.Error("expected the listener to be removed")
	}
}
