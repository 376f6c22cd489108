// Package snapshot implements the dumpState administrative operation: a
// zstd-compressed columnar export of a partition's live records for
// offline bugreport analysis, grounded in the teacher's
// internal/storage/writer.go and reader.go.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

// MagicHeader identifies a snapshot file.
var MagicHeader = []byte("LOGDSNP1")

// Write exports recs as a zstd-compressed columnar snapshot at path.
// The store is never read back from this file: it exists only for
// administrative capture (spec.md §1 Non-goals exclude durable storage).
func Write(path string, recs []*logrecord.Record) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()

	seqs := make([]byte, 8*len(recs))
	secs := make([]byte, 4*len(recs))
	uids := make([]byte, 4*len(recs))
	pids := make([]byte, 4*len(recs))
	var payloads bytes.Buffer

	var minTs, maxTs int64
	for i, r := range recs {
		binary.LittleEndian.PutUint64(seqs[i*8:], r.Seq)
		ts := r.Realtime.Unix()
		binary.LittleEndian.PutUint32(secs[i*4:], uint32(ts))
		binary.LittleEndian.PutUint32(uids[i*4:], r.UID)
		binary.LittleEndian.PutUint32(pids[i*4:], uint32(r.PID))

		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(r.Payload)))
		payloads.Write(lenBuf[:])
		payloads.Write(r.Payload)

		if i == 0 || ts < minTs {
			minTs = ts
		}
		if i == 0 || ts > maxTs {
			maxTs = ts
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(MagicHeader); err != nil {
		return err
	}
	for _, col := range [][]byte{seqs, secs, uids, pids, payloads.Bytes()} {
		if err := writeCompressedBlock(f, enc, col); err != nil {
			return err
		}
	}

	var footer [20]byte
	binary.LittleEndian.PutUint32(footer[0:4], uint32(len(recs)))
	binary.LittleEndian.PutUint64(footer[4:12], uint64(minTs))
	binary.LittleEndian.PutUint64(footer[12:20], uint64(maxTs))
	_, err = f.Write(footer[:])
	return err
}

func writeCompressedBlock(f *os.File, enc *zstd.Encoder, data []byte) error {
	compressed := enc.EncodeAll(data, nil)
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(compressed)))
	if _, err := f.Write(sizeBuf[:]); err != nil {
		return err
	}
	_, err := f.Write(compressed)
	return err
}

var ErrInvalidHeader = errors.New("snapshot: invalid header")
