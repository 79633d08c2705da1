package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/facegate/internal/gate"
)

// Gate is the part of gate.Machine the control API drives.
type Gate interface {
	Start(ctx context.Context, mode gate.Mode) error
	Cancel()
	Snapshot() gate.Event
	IsEnrolled(ctx context.Context) (bool, error)
	IsLockedOut(ctx context.Context) (bool, error)
	RemainingLockoutMinutes(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
	Subscribe() <-chan gate.Event
	Unsubscribe(ch <-chan gate.Event)
}

// GateHandler serves the gate endpoints.
type GateHandler struct {
	gate Gate
}

// NewGateHandler creates a new gate handler.
func NewGateHandler(g Gate) *GateHandler {
	return &GateHandler{gate: g}
}

// StatusResponse is the body of GET /gate/status.
type StatusResponse struct {
	State            gate.State `json:"state"`
	Enrolled         bool       `json:"enrolled"`
	LockedOut        bool       `json:"locked_out"`
	RemainingMinutes int        `json:"remaining_minutes"`
}

// StartSessionRequest is the body of POST /gate/sessions.
type StartSessionRequest struct {
	Mode string `json:"mode"`
}

// Status reports the machine state together with enrollment and lockout.
func (h *GateHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enrolled, err := h.gate.IsEnrolled(ctx)
	if err != nil {
		log.Printf("gate status: enrollment lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read enrollment")
		return
	}
	locked, err := h.gate.IsLockedOut(ctx)
	if err != nil {
		log.Printf("gate status: lockout lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read attempt ledger")
		return
	}
	remaining := 0
	if locked {
		if remaining, err = h.gate.RemainingLockoutMinutes(ctx); err != nil {
			log.Printf("gate status: remaining lockout lookup failed: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to read attempt ledger")
			return
		}
	}

	respondJSON(w, http.StatusOK, StatusResponse{
		State:            h.gate.Snapshot().State,
		Enrolled:         enrolled,
		LockedOut:        locked,
		RemainingMinutes: remaining,
	})
}

// StartSession begins an enrollment or verification session.
func (h *GateHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	mode, err := gate.ParseMode(req.Mode)
	if err != nil {
		log.Printf("gate: rejected session mode %q", sanitizeForLog(req.Mode))
		respondError(w, http.StatusBadRequest, "mode must be enroll or verify")
		return
	}

	if err := h.gate.Start(r.Context(), mode); err != nil {
		if errors.Is(err, gate.ErrSessionActive) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("gate: failed to start %s session: %v", mode, err)
		respondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	respondJSON(w, http.StatusAccepted, h.gate.Snapshot())
}

// CancelSession stops the active session, if any, and returns the resulting
// snapshot.
func (h *GateHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	h.gate.Cancel()
	respondJSON(w, http.StatusOK, h.gate.Snapshot())
}

// ClearEnrollment removes the template and the attempt ledger.
func (h *GateHandler) ClearEnrollment(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.ClearAll(r.Context()); err != nil {
		if errors.Is(err, gate.ErrSessionActive) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("gate: clear failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to clear enrollment")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Events streams machine events until the client disconnects. The first
// event is a "status" snapshot.
func (h *GateHandler) Events(w http.ResponseWriter, r *http.Request) {
	events := h.gate.Subscribe()
	defer h.gate.Unsubscribe(events)

	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	sendSSEEvent(w, flusher, "status", h.gate.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, string(event.Kind), event)
		}
	}
}
