//go:build linux

package peercred

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestFromStreamConnReportsOwnCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peercred.sock")
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		t.Fatalf("ResolveUnixAddr: %v", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	defer ln.Close()

	accepted := make(chan *net.UnixConn, 1)
	go func() {
		conn, err := ln.AcceptUnix()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}
	defer client.Close()

	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	defer server.Close()

	cred, err := FromStreamConn(server)
	if err != nil {
		t.Fatalf("FromStreamConn: %v", err)
	}
	if cred.UID != uint32(os.Getuid()) {
		t.Errorf("UID = %d, want %d (this process's uid, since client and server share it in-test)", cred.UID, os.Getuid())
	}
	if cred.PID != int32(os.Getpid()) {
		t.Errorf("PID = %d, want %d", cred.PID, os.Getpid())
	}
}

func TestFromOOBRejectsGarbage(t *testing.T) {
	if _, err := FromOOB([]byte("not real ancillary data")); err == nil {
		t.Error("expected error for garbage ancillary data")
	}
}
