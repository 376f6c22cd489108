// Package wire implements the binary codecs for the ingest datagram and
// egress stream framing described in spec.md §6.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
)

// IngestHeader is the fixed-size prefix of every ingest datagram:
// partition id, thread id, and the writer's realtime clock reading.
type IngestHeader struct {
	Partition logrecord.Partition
	TID       int32
	Sec       uint32
	NSec      uint32
}

// ingestHeaderSize matches spec.md §6's wire layout: u8 partition_id +
// u16 tid + u32 realtime_sec + u32 realtime_nsec.
const ingestHeaderSize = 1 + 2 + 4 + 4

// DecodeIngestDatagram splits a raw ingest datagram into its header and
// payload.
func DecodeIngestDatagram(data []byte) (IngestHeader, []byte, error) {
	if len(data) < ingestHeaderSize {
		return IngestHeader{}, nil, fmt.Errorf("datagram shorter than header (%d bytes)", len(data))
	}
	h := IngestHeader{
		Partition: logrecord.Partition(data[0]),
		TID:       int32(binary.LittleEndian.Uint16(data[1:3])),
		Sec:       binary.LittleEndian.Uint32(data[3:7]),
		NSec:      binary.LittleEndian.Uint32(data[7:11]),
	}
	payload := data[ingestHeaderSize:]
	if len(payload) == 0 || len(payload) > logrecord.MaxPayload {
		return h, nil, fmt.Errorf("payload length %d out of bounds", len(payload))
	}
	return h, payload, nil
}

// EncodeIngestDatagram builds a raw ingest datagram, used by tests and
// by cmd/logpersist-style clients.
func EncodeIngestDatagram(h IngestHeader, payload []byte) []byte {
	buf := make([]byte, ingestHeaderSize+len(payload))
	buf[0] = byte(h.Partition)
	binary.LittleEndian.PutUint16(buf[1:3], uint16(h.TID))
	binary.LittleEndian.PutUint32(buf[3:7], h.Sec)
	binary.LittleEndian.PutUint32(buf[7:11], h.NSec)
	copy(buf[ingestHeaderSize:], payload)
	return buf
}

func (h IngestHeader) Time() time.Time {
	return time.Unix(int64(h.Sec), int64(h.NSec))
}

// egressFixedHdrSize is the "hdr_size" field's value per spec.md §6: the
// fixed fields following len/hdr_size themselves (pid, tid, realtime_sec,
// realtime_nsec, log_id, uid).
const egressFixedHdrSize = 4 + 4 + 4 + 4 + 4 + 4 // = 24
const egressFrameMetaSize = 2 + 2                // len + hdr_size

// EncodeRecord writes one framed record to w. The wire format carries no
// sequence number: ordering is a store-internal invariant, not an
// externally visible field.
func EncodeRecord(w io.Writer, r *logrecord.Record) error {
	if len(r.Payload) > 0xFFFF {
		return fmt.Errorf("record too large to frame: %d byte payload", len(r.Payload))
	}
	buf := make([]byte, egressFrameMetaSize+egressFixedHdrSize+len(r.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(r.Payload)))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(egressFixedHdrSize))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.PID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.TID))
	sec := r.Realtime.Unix()
	nsec := r.Realtime.Nanosecond()
	binary.LittleEndian.PutUint32(buf[12:16], uint32(sec))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(nsec))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(r.Partition))
	binary.LittleEndian.PutUint32(buf[24:28], r.UID)
	copy(buf[28:], r.Payload)

	_, err := w.Write(buf)
	return err
}

// DecodeRecord reads one framed record from r, used by egress clients
// and by tests to round-trip EncodeRecord.
func DecodeRecord(r *bufio.Reader) (*logrecord.Record, error) {
	meta := make([]byte, egressFrameMetaSize)
	if _, err := io.ReadFull(r, meta); err != nil {
		return nil, err
	}
	payloadLen := binary.LittleEndian.Uint16(meta[0:2])
	hdrSize := binary.LittleEndian.Uint16(meta[2:4])
	if int(hdrSize) != egressFixedHdrSize {
		return nil, fmt.Errorf("unexpected header size %d", hdrSize)
	}

	rest := make([]byte, int(hdrSize)+int(payloadLen))
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}

	rec := &logrecord.Record{
		PID: int32(binary.LittleEndian.Uint32(rest[0:4])),
		TID: int32(binary.LittleEndian.Uint32(rest[4:8])),
	}
	sec := int64(binary.LittleEndian.Uint32(rest[8:12]))
	nsec := int64(binary.LittleEndian.Uint32(rest[12:16]))
	rec.Realtime = time.Unix(sec, nsec)
	rec.Partition = logrecord.Partition(binary.LittleEndian.Uint32(rest[16:20]))
	rec.UID = binary.LittleEndian.Uint32(rest[20:24])
	rec.Payload = append([]byte(nil), rest[egressFixedHdrSize:]...)
	return rec, nil
}
