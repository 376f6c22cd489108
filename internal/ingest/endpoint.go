// Package ingest implements IngestEndpoint: the unix datagram socket
// clients write log records to.
package ingest

import (
	"context"
	"errors"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/Lunaris-AOSP/system-logging/internal/logerr"
	"github.com/Lunaris-AOSP/system-logging/internal/peercred"
	"github.com/Lunaris-AOSP/system-logging/internal/store"
	"github.com/Lunaris-AOSP/system-logging/internal/wire"
)

// Endpoint listens for ingest datagrams and writes them into a LogStore.
type Endpoint struct {
	store *store.LogStore
	log   *zap.Logger
	path  string
	conn  *net.UnixConn

	malformed int64
}

// New creates an Endpoint bound to path. The socket is created on
// Serve, replacing any stale file left over from a previous run.
func New(st *store.LogStore, path string, log *zap.Logger) *Endpoint {
	return &Endpoint{store: st, path: path, log: log}
}

// Serve binds the ingest socket and reads datagrams until ctx is
// cancelled or Close is called.
func (e *Endpoint) Serve(ctx context.Context) error {
	_ = os.Remove(e.path)
	addr, err := net.ResolveUnixAddr("unixgram", e.path)
	if err != nil {
		return logerr.Wrap(logerr.Resource, "ingest.Serve", "resolving address", err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return logerr.Wrap(logerr.Resource, "ingest.Serve", "binding socket", err)
	}
	e.conn = conn
	defer conn.Close()

	if err := peercred.EnablePassCred(conn); err != nil {
		e.log.Warn("ingest: SO_PASSCRED unavailable, credentials will be unverified", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 16*1024)
	oob := make([]byte, 256)

	for {
		n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("ingest: read failed", zap.Error(err))
			continue
		}

		hdr, payload, err := wire.DecodeIngestDatagram(buf[:n])
		if err != nil {
			e.malformed++
			e.log.Debug("ingest: malformed datagram, dropped", zap.Error(err))
			continue
		}

		uid, pid := uint32(0), int32(0)
		if cred, err := peercred.FromOOB(oob[:oobn]); err == nil {
			uid, pid = cred.UID, cred.PID
		}

		_, evicted, err := e.store.Log(hdr.Partition, uid, pid, hdr.TID, payload)
		if err != nil {
			if logerr.KindOf(err) == logerr.PermissionDenied {
				e.log.Debug("ingest: permission denied", zap.Uint32("uid", uid))
			} else {
				e.malformed++
			}
		} else if evicted {
			e.log.Debug("ingest: write caused eviction", zap.Uint8("partition", uint8(hdr.Partition)))
		}
	}
}

// Close shuts down the listening socket.
func (e *Endpoint) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}

// MalformedCount returns the number of datagrams dropped for being
// malformed or rejected, for diagnostics.
func (e *Endpoint) MalformedCount() int64 { return e.malformed }
