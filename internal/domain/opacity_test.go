package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseOpacity(t *testing.T) {
	o, clamped, err := ParseOpacity("0.5")
	if err != nil {
		t.Fatalf("expected valid opacity, got error: %v", err)
	}
	if o != 0.5 || clamped {
		t.Fatalf("expected 0.5 unclamped, got %v clamped=%v", o, clamped)
	}

	o, clamped, err = ParseOpacity(" 1.7 ")
	if err != nil {
		t.Fatalf("expected clamp, got error: %v", err)
	}
	if o != 1 || !clamped {
		t.Fatalf("expected 1 clamped, got %v clamped=%v", o, clamped)
	}

	o, clamped, err = ParseOpacity("-0.2")
	if err != nil {
		t.Fatalf("expected clamp, got error: %v", err)
	}
	if o != 0 || !clamped {
		t.Fatalf("expected 0 clamped, got %v clamped=%v", o, clamped)
	}

	for _, bad := range []string{"", "abc", "NaN", "+Inf", "0.5x"} {
		if _, _, err := ParseOpacity(bad); !errors.Is(err, ErrInvalidOpacity) {
			t.Fatalf("expected ErrInvalidOpacity for %q, got %v", bad, err)
		}
	}
}

func TestStatusJSON(t *testing.T) {
	ok, err := json.Marshal(NewStatus(true, "out/result.png"))
	if err != nil {
		t.Fatalf("marshal success status: %v", err)
	}
	if string(ok) != `{"success":true,"outputPath":"out/result.png"}` {
		t.Fatalf("unexpected success json %s", ok)
	}

	failed, err := json.Marshal(NewStatus(false, "out/result.png"))
	if err != nil {
		t.Fatalf("marshal failure status: %v", err)
	}
	if string(failed) != `{"success":false,"outputPath":null}` {
		t.Fatalf("unexpected failure json %s", failed)
	}
}
