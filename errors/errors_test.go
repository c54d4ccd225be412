package errors

import (
	stderrors "errors"
	"testing"
)

func TestModuleErrorInterfaces(t *testing.T) {
	wrapped := stderrors.New("underlying")
	err := NewModuleError("bad import signature", wrapped)

	var _ ModuleError = err.(ModuleError)

	if err.(PublicError).PublicError() != "bad import signature" {
		t.Fatal("1")
	}
	if !stderrors.Is(err, wrapped) {
		t.Fatal("2")
	}
}

func TestResourceLimitInterfaces(t *testing.T) {
	err := NewResourceLimit("global data offset overflow", nil)

	var _ ResourceLimit = err.(ResourceLimit)

	if stderrors.Unwrap(err) != nil {
		t.Fatal("1")
	}
}

func TestErrCancelledIsSentinel(t *testing.T) {
	if !stderrors.Is(ErrCancelled, ErrCancelled) {
		t.Fatal("1")
	}
}
