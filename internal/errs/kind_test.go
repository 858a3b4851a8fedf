package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWalksWrappedChain(t *testing.T) {
	sentinel := Sentinel(KindTransitionNotAllowed, "transition not allowed")
	err := Wrap(fmt.Errorf("%w: INICIADA -> ENVIADO_A_PAGO", sentinel), "transition expediente")

	if got := KindOf(err); got != KindTransitionNotAllowed {
		t.Fatalf("KindOf() = %q", got)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("errors.Is() = false")
	}
	if Retryable(err) {
		t.Fatalf("Retryable() = true for transition error")
	}
}

func TestRetryableKinds(t *testing.T) {
	if !Retryable(E(KindConflict, "version mismatch")) {
		t.Fatalf("conflict must be retryable")
	}
	if !Retryable(WithKind(errors.New("timeout"), KindExternalUnavailable, "renaper")) {
		t.Fatalf("external unavailable must be retryable")
	}
	if Retryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
	if KindOf(nil) != KindUnknown {
		t.Fatalf("KindOf(nil) must be unknown")
	}
}
