package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Lunaris-AOSP/system-logging/internal/clock"
	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
	"github.com/Lunaris-AOSP/system-logging/internal/prune"
	"github.com/Lunaris-AOSP/system-logging/internal/stats"
	"github.com/Lunaris-AOSP/system-logging/internal/store"
)

func TestParseDenialCredsExtractsBoth(t *testing.T) {
	line := `type=1400 avc: denied { write } for pid=1234 comm="foo" uid=1000 scontext=u:r:foo:s0`
	uid, pid := parseDenialCreds(line)
	if uid != 1000 {
		t.Errorf("uid = %d, want 1000", uid)
	}
	if pid != 1234 {
		t.Errorf("pid = %d, want 1234", pid)
	}
}

func TestParseDenialCredsMissingFields(t *testing.T) {
	uid, pid := parseDenialCreds("no creds in this line at all")
	if uid != 0 || pid != 0 {
		t.Errorf("expected zero values, got uid=%d pid=%d", uid, pid)
	}
}

func TestRunForwardsLinesToSecurityPartition(t *testing.T) {
	st := stats.New()
	pl := prune.NewEmpty()
	clk := clock.Fake(time.Unix(1700000000, 0))
	s := store.New(store.Quotas{logrecord.Security: 1024 * 1024}, st, pl, clk)

	// Realistic AVC denials carry app uids (>= 10000), well above the
	// security partition's default write ceiling. The collaborator must
	// still get these through since it writes as its own trusted uid.
	lines := "avc: denied { read } for pid=1 uid=10001\navc: denied { write } for pid=2 uid=10002\n"
	r := New(strings.NewReader(lines), s)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	it := s.Snapshot(logrecord.Security.Mask(), 0, 0)
	count := 0
	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		if rec.UID != logrecord.TrustedUID {
			t.Errorf("expected record written as trusted uid %d, got %d", logrecord.TrustedUID, rec.UID)
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 forwarded denial records, got %d", count)
	}
}
