// Package gate runs enrollment and verification sessions against the
// camera, the feature extractor and the persisted gate state.
package gate

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/facegate/internal/camera"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facematch"
	"github.com/kozaktomas/facegate/internal/fingerprint"
)

// Camera is the capture resource a session acquires.
type Camera interface {
	Available() bool
	IsCameraPresent(ctx context.Context) bool
	Acquire(ctx context.Context, timeout time.Duration) (*camera.Handle, error)
	Release(h *camera.Handle)
}

// EnrollmentStore stores the single enrolled template.
type EnrollmentStore interface {
	Save(ctx context.Context, d facematch.Descriptor) error
	Load(ctx context.Context) (*database.EnrolledTemplate, error)
	Exists(ctx context.Context) (bool, error)
}

// Ledger records verification outcomes and derives lockout from them.
type Ledger interface {
	Record(ctx context.Context, outcome database.Outcome) error
	IsLockedOut(ctx context.Context, now time.Time) (bool, error)
	RemainingLockoutMinutes(ctx context.Context, now time.Time) (int, error)
}

// Matcher compares a live descriptor with the enrolled one.
type Matcher interface {
	Match(candidate, enrolled facematch.Descriptor) bool
}

// Components are the collaborators of a Machine. All are required.
type Components struct {
	Camera     Camera
	Extractor  fingerprint.Extractor
	Enrollment EnrollmentStore
	Ledger     Ledger
	Matcher    Matcher
	Repository database.AuthRepository // target of ClearAll
}

func (c Components) validate() error {
	switch {
	case c.Camera == nil:
		return errors.New("gate: camera is required")
	case c.Extractor == nil:
		return errors.New("gate: extractor is required")
	case c.Enrollment == nil:
		return errors.New("gate: enrollment store is required")
	case c.Ledger == nil:
		return errors.New("gate: attempt ledger is required")
	case c.Matcher == nil:
		return errors.New("gate: matcher is required")
	case c.Repository == nil:
		return errors.New("gate: repository is required")
	}
	return nil
}

// Option configures a Machine.
type Option func(*Machine)

// WithPollInterval sets how often frames are sampled while capturing.
func WithPollInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithProgressInterval sets the scan progress tick.
func WithProgressInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.progressInterval = d
		}
	}
}

// WithAcquireTimeout sets the camera acquisition cutoff.
func WithAcquireTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.acquireTimeout = d
		}
	}
}

// WithEnrollRounds sets how many captures an enrollment averages.
func WithEnrollRounds(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.rounds = n
		}
	}
}

// WithLogger sets the logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now for lockout checks and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// Machine runs at most one session at a time.
type Machine struct {
	c Components

	pollInterval     time.Duration
	progressInterval time.Duration
	acquireTimeout   time.Duration
	rounds           int
	logger           *log.Logger
	now              func() time.Time

	events broadcaster

	mu       sync.Mutex
	snapshot Event
	active   *session
	lastDone chan struct{}
}

// New creates an idle machine.
func New(c Components, opts ...Option) (*Machine, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		c:                c,
		pollInterval:     constants.FramePollInterval,
		progressInterval: constants.ProgressTickInterval,
		acquireTimeout:   camera.DefaultTimeout,
		rounds:           constants.EnrollmentRounds,
		logger:           log.Default(),
		now:              time.Now,
		lastDone:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	close(m.lastDone)
	m.snapshot = Event{Kind: EventState, State: Idle, At: m.now()}
	return m, nil
}

// Start begins a session in the background. It returns ErrSessionActive if
// one is already running. The session outlives ctx; use Cancel to stop it.
func (m *Machine) Start(ctx context.Context, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return ErrSessionActive
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		id:     uuid.NewString(),
		mode:   mode,
		ctx:    sctx,
		cancel: cancel,
		done:   make(chan struct{}),
		rounds: 1,
	}
	if mode == Enrollment {
		s.rounds = m.rounds
	}
	m.active = s
	m.lastDone = s.done

	m.logger.Printf("gate: session %s: starting %s", s.id, mode)
	go m.run(s)
	return nil
}

// Cancel stops the active session and waits for its teardown. The session
// ends in Idle. It is a no-op when no session is active.
func (m *Machine) Cancel() {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()

	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Done returns a channel closed when the current (or last) session has ended.
func (m *Machine) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDone
}

// Active reports whether a session is running.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.State
}

// Snapshot returns the latest state event with the current progress.
func (m *Machine) Snapshot() Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Subscribe returns a channel receiving every subsequent event. Slow
// listeners miss events rather than blocking the session.
func (m *Machine) Subscribe() <-chan Event {
	return m.events.add()
}

// Unsubscribe stops delivery and closes ch.
func (m *Machine) Unsubscribe(ch <-chan Event) {
	m.events.remove(ch)
}

// IsLockedOut reports whether verification is currently blocked.
func (m *Machine) IsLockedOut(ctx context.Context) (bool, error) {
	return m.c.Ledger.IsLockedOut(ctx, m.now())
}

// RemainingLockoutMinutes returns 0 when not locked out.
func (m *Machine) RemainingLockoutMinutes(ctx context.Context) (int, error) {
	return m.c.Ledger.RemainingLockoutMinutes(ctx, m.now())
}

// IsEnrolled reports whether a template is stored.
func (m *Machine) IsEnrolled(ctx context.Context) (bool, error) {
	return m.c.Enrollment.Exists(ctx)
}

// ClearAll removes the template and the attempt ledger atomically. It is
// refused while a session is active.
func (m *Machine) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return ErrSessionActive
	}
	if err := database.ClearAll(ctx, m.c.Repository); err != nil {
		return err
	}
	m.logger.Printf("gate: enrollment and attempt ledger cleared")
	return nil
}

// publish records ev as the current snapshot and fans it out.
func (m *Machine) publish(ev Event) {
	m.mu.Lock()
	if ev.Kind == EventState {
		m.snapshot = ev
	} else {
		m.snapshot.Progress = ev.Progress
	}
	m.mu.Unlock()

	m.events.send(ev)
}

// finish detaches s so a new session may start.
func (m *Machine) finish(s *session) {
	s.cancel()
	m.mu.Lock()
	if m.active == s {
		m.active = nil
	}
	m.mu.Unlock()
	close(s.done)
}
