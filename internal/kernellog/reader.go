// Package kernellog defines the kernel-log reader collaborator: it only
// reformats /dev/kmsg lines into kernel-partition records, grounded in
// original_source/logd/main.cpp's LogKlog wiring.
package kernellog

import "context"

// Line is one kernel log line along with its parsed priority, if any.
type Line struct {
	Priority int // syslog priority, -1 if absent
	Text     string
}

// Reader produces kernel log lines until ctx is cancelled or the
// underlying source is exhausted.
type Reader interface {
	ReadLines(ctx context.Context) (<-chan Line, error)
}
