package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

// domError mimics a host error carrying a DOMException name.
type domError struct {
	name string
}

func (e domError) Error() string { return e.name + ": camera failed" }
func (e domError) Name() string  { return e.name }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"sentinel permission", ErrPermission, KindPermissionDenied},
		{"wrapped permission", fmt.Errorf("open: %w", ErrPermission), KindPermissionDenied},
		{"fs permission", &fs.PathError{Op: "open", Path: "/dev/video0", Err: fs.ErrPermission}, KindPermissionDenied},
		{"fs not exist", &fs.PathError{Op: "open", Path: "/dev/video0", Err: fs.ErrNotExist}, KindNotFound},
		{"busy", ErrBusy, KindAlreadyInUse},
		{"constraint", ErrConstraint, KindConstraintUnsatisfiable},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"unsupported", errors.ErrUnsupported, KindAPIUnavailable},
		{"NotAllowedError", domError{"NotAllowedError"}, KindPermissionDenied},
		{"NotFoundError", domError{"NotFoundError"}, KindNotFound},
		{"NotReadableError", domError{"NotReadableError"}, KindAlreadyInUse},
		{"OverconstrainedError", domError{"OverconstrainedError"}, KindConstraintUnsatisfiable},
		{"unknown DOM name", domError{"AbortError"}, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.err)
			if result.Kind != tt.expected {
				t.Errorf("Classify(%v).Kind = %s, want %s", tt.err, result.Kind, tt.expected)
			}
			if !errors.Is(result, tt.err) {
				t.Errorf("expected classified error to wrap %v", tt.err)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestClassify_AlreadyClassified(t *testing.T) {
	original := &Error{Kind: KindTimeout, Message: "slow"}
	if Classify(fmt.Errorf("wrap: %w", original)) != original {
		t.Error("expected an existing *Error to be returned unchanged")
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindAlreadyInUse, Message: "held by another app"}
	if err.Error() != "camera: already_in_use: held by another app" {
		t.Errorf("unexpected message '%s'", err.Error())
	}

	bare := &Error{Kind: KindTimeout}
	if bare.Error() != "camera: timeout" {
		t.Errorf("unexpected message '%s'", bare.Error())
	}
}

func TestKindOf_NonCameraError(t *testing.T) {
	if KindOf(errors.New("x")) != KindUnknown {
		t.Error("expected unknown kind for plain error")
	}
}
