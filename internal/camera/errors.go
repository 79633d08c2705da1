package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a camera acquisition failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindNotFound
	KindAlreadyInUse
	KindConstraintUnsatisfiable
	KindTimeout
	KindAPIUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindAlreadyInUse:
		return "already_in_use"
	case KindConstraintUnsatisfiable:
		return "constraint_unsatisfiable"
	case KindTimeout:
		return "timeout"
	case KindAPIUnavailable:
		return "api_unavailable"
	default:
		return "unknown"
	}
}

// Error is the closed set of failures Acquire can report.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "camera: " + e.Kind.String()
	}
	return fmt.Sprintf("camera: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sentinel errors for Device implementations. Anything else is classified
// by Classify on a best-effort basis.
var (
	ErrPermission  = errors.New("camera permission denied")
	ErrNoDevice    = errors.New("no camera device")
	ErrBusy        = errors.New("camera already in use")
	ErrConstraint  = errors.New("camera constraints cannot be satisfied")
	ErrUnsupported = errors.New("camera capture not supported")
)

// namedError matches host errors that expose a DOMException-style name.
type namedError interface {
	error
	Name() string
}

var kindsByName = map[string]Kind{
	"NotAllowedError":             KindPermissionDenied,
	"PermissionDeniedError":       KindPermissionDenied,
	"SecurityError":               KindPermissionDenied,
	"NotFoundError":               KindNotFound,
	"DevicesNotFoundError":        KindNotFound,
	"NotReadableError":            KindAlreadyInUse,
	"TrackStartError":             KindAlreadyInUse,
	"OverconstrainedError":        KindConstraintUnsatisfiable,
	"ConstraintNotSatisfiedError": KindConstraintUnsatisfiable,
	"TypeError":                   KindAPIUnavailable,
}

// Classify maps a host error onto Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var camErr *Error
	if errors.As(err, &camErr) {
		return camErr
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, ErrPermission), errors.Is(err, fs.ErrPermission):
		kind = KindPermissionDenied
	case errors.Is(err, ErrNoDevice), errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, ErrBusy):
		kind = KindAlreadyInUse
	case errors.Is(err, ErrConstraint):
		kind = KindConstraintUnsatisfiable
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, ErrUnsupported), errors.Is(err, errors.ErrUnsupported):
		kind = KindAPIUnavailable
	default:
		var named namedError
		if errors.As(err, &named) {
			if k, ok := kindsByName[named.Name()]; ok {
				kind = k
			}
		}
	}

	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// KindOf returns the Kind of a camera error, or KindUnknown.
func KindOf(err error) Kind {
	var camErr *Error
	if errors.As(err, &camErr) {
		return camErr.Kind
	}
	return KindUnknown
}
