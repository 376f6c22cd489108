package prune

import (
	"testing"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

func TestParseAllowAndDeny(t *testing.T) {
	l, err := Parse("main: 1000 !2000 ~3000/42")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !l.IsAllowed(logrecord.Main, 1000) {
		t.Errorf("uid 1000 should be allow-listed")
	}
	if !l.IsAllowed(logrecord.Main, 3000) {
		t.Errorf("uid 3000 should be allow-listed via ~ synonym")
	}
	if l.IsAllowed(logrecord.Main, 2000) {
		t.Errorf("uid 2000 should not be allow-listed")
	}
	if !l.IsDenied(logrecord.Main, 2000, 1) {
		t.Errorf("uid 2000 should be denied")
	}
}

func TestParseUnknownPartition(t *testing.T) {
	if _, err := Parse("bogus: 1000"); err == nil {
		t.Fatal("expected error for unknown partition")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	spec := "main: 1000 !2000"
	l, err := Parse(spec)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := l.Format()
	l2, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(Format()): %v", err)
	}
	if !l2.IsAllowed(logrecord.Main, 1000) || !l2.IsDenied(logrecord.Main, 2000, 0) {
		t.Errorf("round-tripped list lost rules: %q", out)
	}
}

func TestIsAllowedFirstMatchWins(t *testing.T) {
	l, err := Parse("main: !1000 ~1000")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if l.IsAllowed(logrecord.Main, 1000) {
		t.Error("leading deny entry should win over a later allow entry for the same uid")
	}

	l2, err := Parse("main: ~2000 !2000")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !l2.IsAllowed(logrecord.Main, 2000) {
		t.Error("leading allow entry should win over a later deny entry for the same uid")
	}
}

func TestMatchPIDSpecificity(t *testing.T) {
	l, err := Parse("main: !1000/42")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if l.IsDenied(logrecord.Main, 1000, 43) {
		t.Errorf("pid 43 should not match a pid=42 specific entry")
	}
	if !l.IsDenied(logrecord.Main, 1000, 42) {
		t.Errorf("pid 42 should match")
	}
}
