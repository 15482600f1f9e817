package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Logf("scan %s: %d cells", "2025-09-13T00:24:39", 3)

	if len(captured) != 1 {
		t.Fatalf("captured %d messages, want 1", len(captured))
	}
	if captured[0] != "scan 2025-09-13T00:24:39: 3 cells" {
		t.Errorf("captured %q", captured[0])
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	SetLogger(nil)
	if Logf == nil {
		t.Fatal("nil SetLogger should install a no-op, not nil")
	}
	Logf("must not panic: %v", 42)
}

func TestDefaultLoggerPresent(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should default to a usable logger")
	}
}
