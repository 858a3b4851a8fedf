package errs

import (
	"errors"
	"fmt"
)

// Kind classifies failures for callers that need to decide between
// surfacing, retrying or recovering locally.
type Kind string

const (
	KindUnknown              Kind = ""
	KindValidation           Kind = "VALIDATION_FAILED"
	KindExternalUnavailable  Kind = "EXTERNAL_UNAVAILABLE"
	KindTransitionNotAllowed Kind = "TRANSITION_NOT_ALLOWED"
	KindCupoFull             Kind = "CUPO_FULL"
	KindConflict             Kind = "CONFLICT"
	KindNotFound             Kind = "NOT_FOUND"
	KindPermissionDenied     Kind = "PERMISSION_DENIED"
)

// KindError tags an error with a Kind. Sentinels are built with Sentinel and
// compared with errors.Is; KindOf walks the chain.
type KindError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error { return e.Err }

// Sentinel returns a comparable kind-tagged error value.
func Sentinel(kind Kind, msg string) error {
	return &KindError{Kind: kind, Msg: msg}
}

// E builds a kind-tagged error with a formatted message.
func E(kind Kind, format string, args ...any) error {
	return &KindError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WithKind tags err with kind, keeping the chain intact.
func WithKind(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the outermost Kind found in the chain.
func KindOf(err error) Kind {
	var ke *KindError
	for e := err; e != nil; {
		if errors.As(e, &ke) {
			if ke.Kind != KindUnknown {
				return ke.Kind
			}
			e = ke.Err
			continue
		}
		break
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether re-running the same operation may succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindExternalUnavailable:
		return true
	default:
		return false
	}
}
