package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/facegate/internal/facematch"
)

var enrolledFlag = []byte("true")

// EnrollmentStore persists the single enrolled template
type EnrollmentStore struct {
	repo AuthRepository
	now  func() time.Time
}

// NewEnrollmentStore creates a store on top of repo. A nil now uses time.Now.
func NewEnrollmentStore(repo AuthRepository, now func() time.Time) *EnrollmentStore {
	if now == nil {
		now = time.Now
	}
	return &EnrollmentStore{repo: repo, now: now}
}

// Save overwrites any prior template and marks the store as enrolled.
func (s *EnrollmentStore) Save(ctx context.Context, d facematch.Descriptor) error {
	if d.IsZero() {
		return errors.New("save template: empty descriptor")
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}

	err = s.repo.Set(ctx, map[string][]byte{
		KeyTemplate:   data,
		KeyEnrolledAt: []byte(s.now().UTC().Format(time.RFC3339Nano)),
		KeyEnrolled:   enrolledFlag,
	})
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

// Load returns the enrolled template, or nil if none exists
func (s *EnrollmentStore) Load(ctx context.Context) (*EnrolledTemplate, error) {
	data, err := s.repo.Get(ctx, KeyTemplate)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var d facematch.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}

	tmpl := &EnrolledTemplate{Descriptor: d}

	at, err := s.repo.Get(ctx, KeyEnrolledAt)
	if err != nil {
		return nil, fmt.Errorf("load enrollment time: %w", err)
	}
	if at != nil {
		ts, err := time.Parse(time.RFC3339Nano, string(at))
		if err != nil {
			return nil, fmt.Errorf("decode enrollment time: %w", err)
		}
		tmpl.EnrolledAt = ts
	}

	return tmpl, nil
}

// Exists reports whether the enrolled flag is set and a template is present.
func (s *EnrollmentStore) Exists(ctx context.Context) (bool, error) {
	flag, err := s.repo.Get(ctx, KeyEnrolled)
	if err != nil {
		return false, fmt.Errorf("read enrolled flag: %w", err)
	}
	if string(flag) != string(enrolledFlag) {
		return false, nil
	}

	data, err := s.repo.Get(ctx, KeyTemplate)
	if err != nil {
		return false, fmt.Errorf("read template: %w", err)
	}
	return data != nil, nil
}

// Clear removes the template, its timestamp and the enrolled flag.
func (s *EnrollmentStore) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx, KeyTemplate, KeyEnrolledAt, KeyEnrolled); err != nil {
		return fmt.Errorf("clear template: %w", err)
	}
	return nil
}
