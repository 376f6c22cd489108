// Package audit implements the audit-log collaborator: it parses
// denial lines and forwards them into the security partition, grounded
// in original_source/logd/LogAudit.cpp's auditParse/denialParse.
//
// The real collaborator reads from a netlink socket, not available from
// Go without cgo; this reads from any io.Reader, so production wiring
// can tee a netlink bridge process's stdout into it.
package audit

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
	"github.com/Lunaris-AOSP/system-logging/internal/store"
)

var denialFields = regexp.MustCompile(`\b(pid|uid)=(\d+)`)

// Reader forwards audit denial lines from src into the security
// partition of st.
type Reader struct {
	src io.Reader
	st  *store.LogStore
}

func New(src io.Reader, st *store.LogStore) *Reader {
	return &Reader{src: src, st: st}
}

// Run reads lines from src until ctx is cancelled or src is exhausted,
// logging every "avc: denied" line it sees to the security partition.
// The write is made as the daemon's own trusted uid, per
// original_source/logd/LogAudit.cpp's logPrint: the collaborator is
// reporting a denial, not the denied process writing on its own
// behalf, so SecurityPolicy never gates it. The denied pid is carried
// as the record's pid; the denied uid appears only in the line text,
// not as the write-gating uid. Lines without "avc: denied" are skipped.
func (r *Reader) Run(ctx context.Context) error {
	sc := bufio.NewScanner(r.src)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := sc.Text()
		if !strings.Contains(line, "avc: denied") {
			continue
		}
		_, pid := parseDenialCreds(line)
		_, _, _ = r.st.Log(logrecord.Security, logrecord.TrustedUID, pid, 0, []byte(line))
	}
	return sc.Err()
}

func parseDenialCreds(line string) (uid uint32, pid int32) {
	for _, m := range denialFields.FindAllStringSubmatch(line, -1) {
		v, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil {
			continue
		}
		switch m[1] {
		case "uid":
			uid = uint32(v)
		case "pid":
			pid = int32(v)
		}
	}
	return uid, pid
}
