package logerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfExtractsDirectError(t *testing.T) {
	err := New(PermissionDenied, "LogStore.Log", "uid not permitted")
	if KindOf(err) != PermissionDenied {
		t.Errorf("KindOf = %v, want PermissionDenied", KindOf(err))
	}
}

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := New(Overflow, "LogStore.Log", "write caused evictions")
	wrapped := fmt.Errorf("handling request: %w", base)
	if KindOf(wrapped) != Overflow {
		t.Errorf("KindOf = %v, want Overflow", KindOf(wrapped))
	}
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != Unknown {
		t.Error("expected Unknown for a plain error")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Resource, "Write", "could not persist snapshot", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error string")
	}
}

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		InvalidArgument:  "invalid_argument",
		PermissionDenied: "permission_denied",
		Overflow:         "overflow",
		PeerGone:         "peer_gone",
		Resource:         "resource",
		Internal:         "internal",
		Unknown:          "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
