package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/facegate/internal/camera"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facematch"
)

// session is the state of one run. Everything below done is owned by the
// session goroutine.
type session struct {
	id     string
	mode   Mode
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	rounds int

	state    State
	handle   *camera.Handle
	poll     *time.Ticker
	tick     *time.Ticker
	progress int
	round    int
	latched  facematch.Descriptor
	captures []facematch.Descriptor
}

func (s *session) pollC() <-chan time.Time {
	if s.poll == nil {
		return nil
	}
	return s.poll.C
}

func (s *session) tickC() <-chan time.Time {
	if s.tick == nil {
		return nil
	}
	return s.tick.C
}

func (s *session) stopTasks() {
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
}

// outcome carries the caller-facing details of a transition.
type outcome struct {
	reason   string
	guidance string
	minutes  int
}

// enter moves s to state in one step: the previous state's periodic tasks
// stop, the camera is released on Idle and terminal states, Capturing starts
// a fresh round with its own tickers, and the event is published.
func (m *Machine) enter(s *session, state State, o outcome) {
	s.stopTasks()
	if state == Idle || state.Terminal() {
		m.release(s)
	}

	s.state = state
	if state == Capturing {
		s.progress = 0
		s.latched = facematch.Descriptor{}
		s.poll = time.NewTicker(m.pollInterval)
		s.tick = time.NewTicker(m.progressInterval)
	}

	if o.reason != "" {
		m.logger.Printf("gate: session %s: %s (%s)", s.id, state, o.reason)
	} else {
		m.logger.Printf("gate: session %s: %s", s.id, state)
	}

	m.publish(Event{
		SessionID:        s.id,
		Mode:             s.mode,
		Kind:             EventState,
		State:            state,
		Reason:           o.reason,
		Guidance:         o.guidance,
		Progress:         s.progress,
		Round:            s.round,
		Rounds:           s.rounds,
		RemainingMinutes: o.minutes,
		At:               m.now(),
	})
}

func (m *Machine) release(s *session) {
	if s.handle != nil {
		m.c.Camera.Release(s.handle)
		s.handle = nil
	}
}

// stopped ends a canceled session in Idle.
func (m *Machine) stopped(s *session) bool {
	if s.ctx.Err() == nil {
		return false
	}
	m.enter(s, Idle, outcome{reason: "canceled"})
	return true
}

func (m *Machine) run(s *session) {
	defer m.finish(s)

	if s.mode == Verification {
		locked, err := m.c.Ledger.IsLockedOut(s.ctx, m.now())
		if m.stopped(s) {
			return
		}
		if err != nil {
			m.enter(s, Failed, outcome{reason: err.Error()})
			return
		}
		if locked {
			m.enterLocked(s.ctx, s)
			return
		}
	}
	if m.stopped(s) {
		return
	}

	m.enter(s, RequestingResource, outcome{})

	if !m.c.Camera.Available() || !m.c.Camera.IsCameraPresent(s.ctx) {
		if m.stopped(s) {
			return
		}
		m.enter(s, ResourceUnavailable, outcome{reason: "no camera available", guidance: guidanceUnavailable})
		return
	}

	h, err := m.c.Camera.Acquire(s.ctx, m.acquireTimeout)
	s.handle = h
	if m.stopped(s) {
		return
	}
	if err != nil {
		m.enterCameraError(s, err)
		return
	}

	s.round = 1
	m.enter(s, Capturing, outcome{})
	m.capture(s)
}

// capture is the session event loop while the camera is held.
func (m *Machine) capture(s *session) {
	for {
		select {
		case <-s.ctx.Done():
			m.enter(s, Idle, outcome{reason: "canceled"})
			return

		case <-s.pollC():
			if s.latched.IsZero() {
				if d, ok := m.c.Extractor.SampleFrame(s.ctx, s.handle.Stream()); ok && !d.IsZero() {
					s.latched = d
				}
			}

		case <-s.tickC():
			if s.progress < constants.MaxProgress {
				s.progress++
				m.publish(Event{
					SessionID: s.id,
					Mode:      s.mode,
					Kind:      EventProgress,
					State:     s.state,
					Progress:  s.progress,
					Round:     s.round,
					Rounds:    s.rounds,
					At:        m.now(),
				})
			}
		}

		// Without a latched descriptor the round extends past 100.
		if s.ctx.Err() == nil && s.progress >= constants.MaxProgress && !s.latched.IsZero() {
			if m.analyze(s) {
				return
			}
		}
	}
}

// analyze evaluates the latched descriptor and reports whether the session
// ended. Once begun it runs to completion so an attempt is never half
// recorded.
func (m *Machine) analyze(s *session) bool {
	m.enter(s, Analyzing, outcome{})
	ctx := context.WithoutCancel(s.ctx)

	if s.mode == Enrollment {
		return m.analyzeEnrollment(ctx, s)
	}
	m.analyzeVerification(ctx, s)
	return true
}

func (m *Machine) analyzeEnrollment(ctx context.Context, s *session) bool {
	s.captures = append(s.captures, s.latched)
	if s.round < s.rounds {
		s.round++
		m.enter(s, Capturing, outcome{})
		return false
	}

	template, err := facematch.Centroid(s.captures...)
	if err != nil {
		m.enter(s, Failed, outcome{reason: err.Error()})
		return true
	}
	if err := m.c.Enrollment.Save(ctx, template); err != nil {
		m.enter(s, Failed, outcome{reason: err.Error()})
		return true
	}

	m.enter(s, Succeeded, outcome{})
	return true
}

func (m *Machine) analyzeVerification(ctx context.Context, s *session) {
	result := database.OutcomeFailure
	var o outcome

	tmpl, err := m.loadTemplate(ctx)
	switch {
	case err != nil:
		o.reason = err.Error()
	case tmpl == nil:
		o = outcome{reason: ReasonNotEnrolled, guidance: guidanceNotEnrolled}
	case m.c.Matcher.Match(s.latched, tmpl.Descriptor):
		result = database.OutcomeSuccess
	default:
		o.reason = "face did not match"
	}

	if err := m.c.Ledger.Record(ctx, result); err != nil {
		m.enter(s, Failed, outcome{reason: err.Error()})
		return
	}
	if result == database.OutcomeSuccess {
		m.enter(s, Succeeded, outcome{})
		return
	}

	locked, err := m.c.Ledger.IsLockedOut(ctx, m.now())
	if err != nil {
		o.reason = fmt.Sprintf("%s: lockout check failed: %v", o.reason, err)
		m.enter(s, Failed, o)
		return
	}
	if locked {
		m.enterLocked(ctx, s)
		return
	}
	m.enter(s, Failed, o)
}

// loadTemplate returns nil without error when nothing is enrolled.
func (m *Machine) loadTemplate(ctx context.Context) (*database.EnrolledTemplate, error) {
	ok, err := m.c.Enrollment.Exists(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return m.c.Enrollment.Load(ctx)
}

func (m *Machine) enterLocked(ctx context.Context, s *session) {
	minutes, err := m.c.Ledger.RemainingLockoutMinutes(ctx, m.now())
	if err != nil {
		m.logger.Printf("gate: session %s: remaining lockout unknown: %v", s.id, err)
	}
	m.enter(s, Locked, outcome{
		reason:   "locked out",
		guidance: lockedGuidance(minutes),
		minutes:  minutes,
	})
}

// enterCameraError translates an acquisition failure into a terminal state.
func (m *Machine) enterCameraError(s *session, err error) {
	cerr := camera.Classify(err)
	o := outcome{reason: cerr.Error()}

	switch cerr.Kind {
	case camera.KindPermissionDenied:
		o.guidance = guidancePermission
		m.enter(s, PermissionDenied, o)
		return
	case camera.KindAPIUnavailable:
		o.guidance = guidanceUnavailable
		m.enter(s, ResourceUnavailable, o)
		return
	case camera.KindAlreadyInUse:
		o.guidance = guidanceInUse
	case camera.KindTimeout:
		o.guidance = guidanceTimeout
	}
	m.enter(s, Failed, o)
}
