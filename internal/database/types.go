package database

import (
	"time"

	"github.com/kozaktomas/facegate/internal/facematch"
)

// Outcome of a completed verification.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// AttemptRecord is one ledger entry. Records are never modified once appended.
type AttemptRecord struct {
	Timestamp time.Time `json:"ts"`
	Outcome   Outcome   `json:"outcome"`
}

// EnrolledTemplate is the single stored reference descriptor
type EnrolledTemplate struct {
	Descriptor facematch.Descriptor
	EnrolledAt time.Time
}
