//go:build linux

package kernellog

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
)

// KmsgReader tails /dev/kmsg, the structured kernel log device,
// matching main.cpp's readDmesg/LogKlog wiring.
type KmsgReader struct {
	Path string
}

func NewKmsgReader() *KmsgReader {
	return &KmsgReader{Path: "/dev/kmsg"}
}

func (k *KmsgReader) ReadLines(ctx context.Context) (<-chan Line, error) {
	path := k.Path
	if path == "" {
		path = "/dev/kmsg"
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	out := make(chan Line, 64)
	go func() {
		defer f.Close()
		defer close(out)

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			out <- parseKmsgLine(sc.Text())
		}
	}()
	return out, nil
}

// parseKmsgLine extracts the priority from the leading
// "priority,seq,timestamp,flags;" structured prefix /dev/kmsg lines carry
// ahead of the free-text message, keeping only its low three bits (the
// severity level).
func parseKmsgLine(line string) Line {
	if prefix, text, ok := strings.Cut(line, ";"); ok {
		if field, _, hasComma := strings.Cut(prefix, ","); hasComma {
			if p, err := strconv.Atoi(field); err == nil {
				return Line{Priority: p & 0x7, Text: text}
			}
		}
	}
	return Line{Priority: -1, Text: line}
}
