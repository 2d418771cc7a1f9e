package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})
	Logf("lane %d: %s", 2, "abandoned passage")

	if captured != "lane 2: abandoned passage" {
		t.Errorf("captured = %q, want formatted warning", captured)
	}
}

func TestSetLoggerNilIsNoOp(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	SetLogger(nil)
	// Must not panic.
	Logf("dropped message on %s", "display")
}
