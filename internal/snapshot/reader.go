package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

func unixSeconds(sec int64) time.Time { return time.Unix(sec, 0) }

// Read loads a snapshot file back into a slice of records, used by
// tests and by offline bugreport tooling. LogStore never calls this:
// the store remains volatile.
func Read(path string) ([]*logrecord.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header, MagicHeader) {
		return nil, ErrInvalidHeader
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < int64(len(MagicHeader))+20 {
		return nil, errors.New("snapshot: file too small")
	}

	footer := make([]byte, 20)
	if _, err := f.ReadAt(footer, info.Size()-20); err != nil {
		return nil, err
	}
	rowCount := int(binary.LittleEndian.Uint32(footer[0:4]))

	seqs, err := readBlock(f, dec)
	if err != nil {
		return nil, err
	}
	secs, err := readBlock(f, dec)
	if err != nil {
		return nil, err
	}
	uids, err := readBlock(f, dec)
	if err != nil {
		return nil, err
	}
	pids, err := readBlock(f, dec)
	if err != nil {
		return nil, err
	}
	payloads, err := readBlock(f, dec)
	if err != nil {
		return nil, err
	}

	recs := make([]*logrecord.Record, rowCount)
	payloadOff := 0
	for i := 0; i < rowCount; i++ {
		r := &logrecord.Record{
			Seq: binary.LittleEndian.Uint64(seqs[i*8:]),
			UID: binary.LittleEndian.Uint32(uids[i*4:]),
			PID: int32(binary.LittleEndian.Uint32(pids[i*4:])),
		}
		sec := binary.LittleEndian.Uint32(secs[i*4:])
		r.Realtime = unixSeconds(int64(sec))

		plen := binary.LittleEndian.Uint32(payloads[payloadOff:])
		payloadOff += 4
		r.Payload = append([]byte(nil), payloads[payloadOff:payloadOff+int(plen)]...)
		payloadOff += int(plen)

		recs[i] = r
	}
	return recs, nil
}

func readBlock(f *os.File, dec *zstd.Decoder) ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(f, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	compressed := make([]byte, size)
	if _, err := io.ReadFull(f, compressed); err != nil {
		return nil, err
	}
	return dec.DecodeAll(compressed, nil)
}
