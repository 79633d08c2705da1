package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Lockout defaults.
const (
	DefaultLockoutThreshold = 5
	DefaultLockoutWindow    = 30 * time.Minute
	DefaultLedgerCapacity   = 20
)

// Policy describes when recent failures lock the gate.
type Policy struct {
	Threshold int           // failures inside Window that lock
	Window    time.Duration // sliding window
	Capacity  int           // records kept, oldest evicted first
}

// DefaultPolicy returns 5 failures in 30 minutes over a 20 record ledger.
func DefaultPolicy() Policy {
	return Policy{
		Threshold: DefaultLockoutThreshold,
		Window:    DefaultLockoutWindow,
		Capacity:  DefaultLedgerCapacity,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.Capacity <= 0 {
		p.Capacity = d.Capacity
	}
	return p
}

// recentFailures returns failure timestamps with now - ts < window, newest first.
func recentFailures(records []AttemptRecord, now time.Time, window time.Duration) []time.Time {
	var out []time.Time
	for _, r := range records {
		if r.Outcome == OutcomeFailure && now.Sub(r.Timestamp) < window {
			out = append(out, r.Timestamp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

// LockedOut reports whether records hold at least p.Threshold failures
// inside the window ending at now.
func LockedOut(records []AttemptRecord, now time.Time, p Policy) bool {
	p = p.withDefaults()
	return len(recentFailures(records, now, p.Window)) >= p.Threshold
}

// RemainingLockout returns whole minutes, rounded up, until the
// p.Threshold-th most recent qualifying failure leaves the window.
// It is 0 when not locked out.
func RemainingLockout(records []AttemptRecord, now time.Time, p Policy) int {
	p = p.withDefaults()
	failures := recentFailures(records, now, p.Window)
	if len(failures) < p.Threshold {
		return 0
	}

	remaining := failures[p.Threshold-1].Add(p.Window).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Minute - 1) / time.Minute)
}

// AttemptLedger is the bounded log of verification outcomes. Lockout is
// always derived from its contents.
type AttemptLedger struct {
	repo   AuthRepository
	policy Policy
	now    func() time.Time
}

// NewAttemptLedger creates a ledger. Zero policy fields take their defaults
// and a nil now uses time.Now.
func NewAttemptLedger(repo AuthRepository, policy Policy, now func() time.Time) *AttemptLedger {
	if now == nil {
		now = time.Now
	}
	return &AttemptLedger{repo: repo, policy: policy.withDefaults(), now: now}
}

// Policy returns the effective lockout policy.
func (l *AttemptLedger) Policy() Policy {
	return l.policy
}

// Records returns a copy of the ledger, oldest first.
func (l *AttemptLedger) Records(ctx context.Context) ([]AttemptRecord, error) {
	data, err := l.repo.Get(ctx, KeyAttempts)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var records []AttemptRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	return records, nil
}

// Record appends an outcome stamped with the current time, evicting the
// oldest records past capacity.
func (l *AttemptLedger) Record(ctx context.Context, outcome Outcome) error {
	records, err := l.Records(ctx)
	if err != nil {
		return err
	}

	records = append(records, AttemptRecord{Timestamp: l.now().UTC(), Outcome: outcome})
	if over := len(records) - l.policy.Capacity; over > 0 {
		records = records[over:]
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode attempts: %w", err)
	}
	if err := l.repo.Set(ctx, map[string][]byte{KeyAttempts: data}); err != nil {
		return fmt.Errorf("save attempts: %w", err)
	}
	return nil
}

// IsLockedOut evaluates the lockout rule at now.
func (l *AttemptLedger) IsLockedOut(ctx context.Context, now time.Time) (bool, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return false, err
	}
	return LockedOut(records, now, l.policy), nil
}

// RemainingLockoutMinutes returns 0 when not locked out.
func (l *AttemptLedger) RemainingLockoutMinutes(ctx context.Context, now time.Time) (int, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return 0, err
	}
	return RemainingLockout(records, now, l.policy), nil
}

// Clear empties the ledger.
func (l *AttemptLedger) Clear(ctx context.Context) error {
	if err := l.repo.Clear(ctx, KeyAttempts); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	return nil
}
