package pdu

import (
	"bytes"
	"encoding/binary"
)

// WriteChunkU16 reserves a 2-byte big-endian length prefix in buf, invokes
// body to write the chunk's payload, then backfills the prefix with the
// number of bytes body wrote. This is the "reserve, write body, backfill"
// pattern the wire format uses for every nested sub-item.
func WriteChunkU16(buf *bytes.Buffer, body func(*bytes.Buffer) error) error {
	pos := buf.Len()
	buf.Write([]byte{0, 0})
	start := buf.Len()
	if err := body(buf); err != nil {
		return err
	}
	n := buf.Len() - start
	out := buf.Bytes()
	binary.BigEndian.PutUint16(out[pos:pos+2], uint16(n))
	return nil
}

// WriteChunkU32 is WriteChunkU16's 4-byte-length counterpart, used for the
// top-level PDU length field and the PDV length field.
func WriteChunkU32(buf *bytes.Buffer, body func(*bytes.Buffer) error) error {
	pos := buf.Len()
	buf.Write([]byte{0, 0, 0, 0})
	start := buf.Len()
	if err := body(buf); err != nil {
		return err
	}
	n := buf.Len() - start
	out := buf.Bytes()
	binary.BigEndian.PutUint32(out[pos:pos+4], uint32(n))
	return nil
}
