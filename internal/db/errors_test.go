package db

import (
	"errors"
	"testing"
)

func TestError_UnwrapAndMessage(t *testing.T) {
	inner := errors.New("connection reset")
	err := error(&Error{Op: OpGet, Err: inner})

	if err.Error() != "GET: connection reset" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to reach the wrapped error")
	}
}
