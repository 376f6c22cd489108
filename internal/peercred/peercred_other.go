//go:build !linux

package peercred

import (
	"errors"
	"net"
)

// Cred is a peer's credentials as reported by the kernel.
type Cred struct {
	UID uint32
	PID int32
	GID uint32
}

var errUnsupported = errors.New("peercred: not supported on this platform")

func FromStreamConn(conn *net.UnixConn) (Cred, error) { return Cred{}, errUnsupported }
func EnablePassCred(conn *net.UnixConn) error          { return errUnsupported }
func FromOOB(oob []byte) (Cred, error)                 { return Cred{}, errUnsupported }
