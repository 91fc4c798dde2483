package id

import (
	"strings"
	"testing"
)

func TestNewRunIsUnique(t *testing.T) {
	a, b := NewRun(), NewRun()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if !strings.HasPrefix(a, "run-") || len(a) != len("run-")+24 {
		t.Fatalf("unexpected id format %q", a)
	}
}
