// Package egress implements EgressEndpoint: the unix stream socket
// readers connect to for dump and tail queries.
package egress

import (
	"bufio"
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lunaris-AOSP/system-logging/internal/logerr"
	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
	"github.com/Lunaris-AOSP/system-logging/internal/reader"
	"github.com/Lunaris-AOSP/system-logging/internal/store"
	"github.com/Lunaris-AOSP/system-logging/internal/wire"
)

// Endpoint listens for egress connections and streams records per the
// request line's filter.
type Endpoint struct {
	store    *store.LogStore
	registry *reader.Registry
	log      *zap.Logger
	path     string
	ln       *net.UnixListener
}

func New(st *store.LogStore, registry *reader.Registry, path string, log *zap.Logger) *Endpoint {
	return &Endpoint{store: st, registry: registry, path: path, log: log}
}

func (e *Endpoint) Serve(ctx context.Context) error {
	_ = os.Remove(e.path)
	addr, err := net.ResolveUnixAddr("unix", e.path)
	if err != nil {
		return logerr.Wrap(logerr.Resource, "egress.Serve", "resolving address", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return logerr.Wrap(logerr.Resource, "egress.Serve", "binding socket", err)
	}
	e.ln = ln
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("egress: accept failed", zap.Error(err))
			continue
		}
		go e.handle(ctx, conn)
	}
}

func (e *Endpoint) Close() error {
	if e.ln == nil {
		return nil
	}
	return e.ln.Close()
}

type connSink struct{ conn *net.UnixConn }

func (s connSink) Write(r *logrecord.Record) error {
	return wire.EncodeRecord(s.conn, r)
}

func (e *Endpoint) handle(ctx context.Context, conn *net.UnixConn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	filter, err := parseRequest(line)
	if err != nil {
		e.log.Debug("egress: bad request", zap.Error(err))
		return
	}
	conn.SetReadDeadline(time.Time{})

	sub, err := reader.Subscribe(e.registry, e.store, filter)
	if err != nil {
		e.log.Debug("egress: subscribe failed", zap.Error(err))
		return
	}
	defer sub.Close()

	if err := sub.Pump(ctx, connSink{conn: conn}); err != nil {
		e.log.Debug("egress: pump ended", zap.Error(err))
	}
}

// parseRequest parses the newline-terminated egress request line per
// spec.md §6: `logIds=<mask> [tail=<n>] [start=<s>.<ns>] [pid=<n>]
// [uid=<n>] [level=<n>] [dump|stream]`. logIds is required; dump|stream
// are bare mode tokens, not key=value pairs; dump is the default mode
// when neither is given. level implements §3's optional log-level
// filter (binary-event partitions ignore it regardless of value). stop
// and chatty are additive fields beyond the literal grammar, supported
// for administrative range reads.
func parseRequest(line string) (logrecord.Filter, error) {
	line = strings.TrimSpace(line)
	var f logrecord.Filter
	haveMask := false
	stream := false

	for _, tok := range strings.Fields(line) {
		if tok == "dump" || tok == "stream" {
			stream = tok == "stream"
			continue
		}
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			return f, logerr.New(logerr.InvalidArgument, "egress.parseRequest", "malformed token: "+tok)
		}
		switch key {
		case "logIds":
			v, err := strconv.ParseUint(val, 0, 8)
			if err != nil {
				return f, logerr.Wrap(logerr.InvalidArgument, "egress.parseRequest", "bad logIds", err)
			}
			f.PartitionMask = uint8(v)
			haveMask = true
		case "tail":
			n, err := strconv.Atoi(val)
			if err != nil {
				return f, logerr.Wrap(logerr.InvalidArgument, "egress.parseRequest", "bad tail", err)
			}
			f.TailCount = n
		case "start":
			t, err := parseStartTime(val)
			if err != nil {
				return f, logerr.Wrap(logerr.InvalidArgument, "egress.parseRequest", "bad start", err)
			}
			f.StartTime = t
		case "stop":
			v, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return f, logerr.Wrap(logerr.InvalidArgument, "egress.parseRequest", "bad stop", err)
			}
			f.StopSeq = v
		case "chatty":
			f.ReportChatty = val == "1" || val == "true"
		case "pid":
			v, err := strconv.ParseInt(val, 10, 32)
			if err != nil {
				return f, logerr.Wrap(logerr.InvalidArgument, "egress.parseRequest", "bad pid", err)
			}
			p32 := int32(v)
			f.PID = &p32
		case "uid":
			v, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return f, logerr.Wrap(logerr.InvalidArgument, "egress.parseRequest", "bad uid", err)
			}
			u32 := uint32(v)
			f.UID = &u32
		case "level":
			v, err := strconv.ParseUint(val, 10, 8)
			if err != nil {
				return f, logerr.Wrap(logerr.InvalidArgument, "egress.parseRequest", "bad level", err)
			}
			f.MinLevel = logrecord.Priority(v)
		default:
			return f, logerr.New(logerr.InvalidArgument, "egress.parseRequest", "unknown key: "+key)
		}
	}
	if !haveMask {
		return f, logerr.New(logerr.InvalidArgument, "egress.parseRequest", "logIds is required")
	}
	f.Tail = stream
	return f, nil
}

// parseStartTime parses the "<sec>.<nsec>" realtime form spec.md §6
// specifies for the start field.
func parseStartTime(val string) (time.Time, error) {
	secStr, nsecStr, _ := strings.Cut(val, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	var nsec int64
	if nsecStr != "" {
		nsec, err = strconv.ParseInt(nsecStr, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Unix(sec, nsec), nil
}
