//go:build linux

// Package peercred reads socket peer credentials, the mechanism by
// which uid/pid/gid enter the system at the ingest boundary (spec.md
// §4.6). The egress and control endpoints do not read peer credentials.
package peercred

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Cred is a peer's credentials as reported by the kernel.
type Cred struct {
	UID uint32
	PID int32
	GID uint32
}

// FromStreamConn reads SO_PEERCRED off an accepted unix stream
// connection.
func FromStreamConn(conn *net.UnixConn) (Cred, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Cred{}, err
	}

	var ucred *unix.Ucred
	var ctlErr error
	err = raw.Control(func(fd uintptr) {
		ucred, ctlErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return Cred{}, err
	}
	if ctlErr != nil {
		return Cred{}, ctlErr
	}
	return Cred{UID: ucred.Uid, PID: ucred.Pid, GID: ucred.Gid}, nil
}

// EnablePassCred turns on SO_PASSCRED for a unix datagram socket so that
// ReadCredFromMsg can extract per-message SCM_CREDENTIALS ancillary
// data, since a bound, unconnected datagram socket has no single peer
// for SO_PEERCRED to describe.
func EnablePassCred(conn *net.UnixConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var ctlErr error
	err = raw.Control(func(fd uintptr) {
		ctlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PASSCRED, 1)
	})
	if err != nil {
		return err
	}
	return ctlErr
}

// FromOOB parses SCM_CREDENTIALS ancillary data returned by
// net.UnixConn.ReadMsgUnix.
func FromOOB(oob []byte) (Cred, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return Cred{}, err
	}
	for _, m := range msgs {
		ucred, err := unix.ParseUnixCredentials(&m)
		if err == nil {
			return Cred{UID: ucred.Uid, PID: ucred.Pid, GID: ucred.Gid}, nil
		}
	}
	return Cred{}, fmt.Errorf("no SCM_CREDENTIALS in ancillary data")
}
