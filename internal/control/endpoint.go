// Package control implements ControlEndpoint: the unix stream socket
// administrative commands arrive on.
package control

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
	"github.com/Lunaris-AOSP/system-logging/internal/prune"
	"github.com/Lunaris-AOSP/system-logging/internal/snapshot"
	"github.com/Lunaris-AOSP/system-logging/internal/stats"
	"github.com/Lunaris-AOSP/system-logging/internal/store"
	"github.com/Lunaris-AOSP/system-logging/internal/tags"

	"context"
)

// Endpoint serves administrative commands over a unix stream socket.
type Endpoint struct {
	store *store.LogStore
	stats *stats.Statistics
	tags  *tags.Registry
	log   *zap.Logger
	path  string
	ln    *net.UnixListener
}

func New(st *store.LogStore, stc *stats.Statistics, tg *tags.Registry, path string, log *zap.Logger) *Endpoint {
	return &Endpoint{store: st, stats: stc, tags: tg, path: path, log: log}
}

func (e *Endpoint) Serve(ctx context.Context) error {
	_ = os.Remove(e.path)
	addr, err := net.ResolveUnixAddr("unix", e.path)
	if err != nil {
		return err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return err
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
			e.log.Warn("control: accept failed", zap.Error(err))
			continue
		}
		go e.handle(conn)
	}
}

func (e *Endpoint) Close() error {
	if e.ln == nil {
		return nil
	}
	return e.ln.Close()
}

// handle reads one command per line until the peer closes the
// connection or sends exit, per spec §4.8's "administrative parse
// failure: respond with error, keep connection open until explicit
// close."
func (e *Endpoint) handle(conn *net.UnixConn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if line == "" && err != nil {
			return
		}
		reply, closeAfter := e.dispatch(strings.TrimSpace(line))
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
		if closeAfter || err != nil {
			return
		}
	}
}

func (e *Endpoint) dispatch(line string) (reply string, closeAfter bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "Invalid\n", false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "getStatistics":
		return e.cmdGetStatistics(args), false
	case "clear":
		return e.cmdClear(args), false
	case "getPruneList":
		return e.store.PruneList().Format() + "\n", false
	case "setPruneList":
		return e.cmdSetPruneList(strings.Join(args, " ")), false
	case "getEventTag":
		return e.cmdGetEventTag(args), false
	case "reinit":
		return e.cmdReinit(), false
	case "dumpState":
		return e.cmdDumpState(args), false
	case "exit":
		return "success\n", true
	default:
		return "Invalid\n", false
	}
}

// resolvePartition accepts either a partition name or its numeric
// index (spec.md §6's example: "clear 3", "getStatistics 0 1"), since
// administrative commands address partitions both ways.
func resolvePartition(a string) (logrecord.Partition, bool) {
	if p, ok := logrecord.ParsePartition(a); ok {
		return p, true
	}
	if n, err := strconv.Atoi(a); err == nil && n >= 0 && n < logrecord.NumPartitions {
		return logrecord.Partition(n), true
	}
	return 0, false
}

// cmdGetStatistics implements `getStatistics [partition…]`. Partitions
// are named either numerically (spec.md §6's example: "getStatistics 0
// 1") or by name; an empty list means every partition. "--json"/"json"
// selects the fastjson reply mode over the default text table.
func (e *Endpoint) cmdGetStatistics(args []string) string {
	json := false
	var mask uint8
	for _, a := range args {
		switch a {
		case "--json", "json":
			json = true
			continue
		}
		if p, ok := resolvePartition(a); ok {
			mask |= p.Mask()
		}
	}
	if mask == 0 {
		mask = 0xFF
	}
	if json {
		return string(e.stats.DumpJSON(mask)) + "\n"
	}
	return e.stats.DumpText(mask)
}

func (e *Endpoint) cmdClear(args []string) string {
	if len(args) == 0 {
		return "Invalid\n"
	}
	p, ok := resolvePartition(args[0])
	if !ok {
		return "Invalid\n"
	}
	var uid *uint32
	if len(args) > 1 {
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return "Invalid\n"
		}
		u32 := uint32(v)
		uid = &u32
	}
	if err := e.store.Clear(p, uid); err != nil {
		return "Invalid\n"
	}
	return "success\n"
}

func (e *Endpoint) cmdSetPruneList(spec string) string {
	pl, err := prune.Parse(spec)
	if err != nil {
		return fmt.Sprintf("Invalid: %v\n", err)
	}
	e.store.SetPruneList(pl)
	return "success\n"
}

func (e *Endpoint) cmdGetEventTag(args []string) string {
	var name, format string
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		switch k {
		case "name":
			name = v
		case "format":
			format = v
		}
	}
	if name == "" {
		return "Invalid\n"
	}
	id, err := e.tags.GetOrCreate(name, format)
	if err != nil {
		return fmt.Sprintf("Invalid: %v\n", err)
	}
	return fmt.Sprintf("%d\n", id)
}

func (e *Endpoint) cmdReinit() string {
	_, err := e.tags.Reinit()
	if err != nil {
		return fmt.Sprintf("Invalid: %v\n", err)
	}
	return "success\n"
}

func (e *Endpoint) cmdDumpState(args []string) string {
	if len(args) < 2 {
		return "Invalid\n"
	}
	p, ok := resolvePartition(args[0])
	if !ok {
		return "Invalid\n"
	}
	path := args[1]

	it := e.store.Snapshot(p.Mask(), 0, 0)
	var recs []*logrecord.Record
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		recs = append(recs, r)
	}
	if err := snapshot.Write(path, recs); err != nil {
		return fmt.Sprintf("Invalid: %v\n", err)
	}
	return "success\n"
}
