// Package pdu implements the Upper Layer PDU codec: the length-prefixed,
// big-endian wire format described by PS3.8 section 9.3, and nothing else.
// It has no notion of association state; callers (the fsm and association
// packages) decide when a PDU is expected and what to do with it.
package pdu

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mjpearson/dicomul/ulerr"
	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// Type is the one-byte PDU type field that opens every top-level PDU.
type Type byte

const (
	TypeAssociateRQ Type = 0x01
	TypeAssociateAC Type = 0x02
	TypeAssociateRJ Type = 0x03
	TypePData       Type = 0x04
	TypeReleaseRQ   Type = 0x05
	TypeReleaseRP   Type = 0x06
	TypeAbortRQ     Type = 0x07
)

func (t Type) String() string {
	switch t {
	case TypeAssociateRQ:
		return "A-ASSOCIATE-RQ"
	case TypeAssociateAC:
		return "A-ASSOCIATE-AC"
	case TypeAssociateRJ:
		return "A-ASSOCIATE-RJ"
	case TypePData:
		return "P-DATA-TF"
	case TypeReleaseRQ:
		return "A-RELEASE-RQ"
	case TypeReleaseRP:
		return "A-RELEASE-RP"
	case TypeAbortRQ:
		return "A-ABORT"
	default:
		return fmt.Sprintf("Type(0x%02x)", byte(t))
	}
}

// PDU is the tagged union of everything that can cross the wire at the top
// level: the seven well-known kinds plus Unknown, for a type byte this codec
// doesn't recognize but must still be able to skip over.
type PDU interface {
	// Kind reports which of the eight variants this value is.
	Kind() Type
}

// Unknown preserves an unrecognized top-level PDU type and its raw payload
// rather than failing the whole read, mirroring how UnknownUserVariableItem
// preserves unrecognized sub-items one level down.
type Unknown struct {
	PDUType Type
	Payload []byte
}

func (u Unknown) Kind() Type { return u.PDUType }

// ReleaseRQ and ReleaseRP carry no fields of their own on the wire (the
// payload is four reserved bytes); they exist as distinct types purely to
// select the Type byte and drive the state machine.
type ReleaseRQ struct{}

func (ReleaseRQ) Kind() Type { return TypeReleaseRQ }

type ReleaseRP struct{}

func (ReleaseRP) Kind() Type { return TypeReleaseRP }

// ReadPDU reads one top-level PDU from r. maxPDUSize bounds the declared
// length field; a PDU declaring more than that is rejected before its body
// is read, so a hostile or buggy peer can't make the reader allocate an
// unbounded buffer.
func ReadPDU(r io.Reader, maxPDUSize uint32) (PDU, error) {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:1]); err != nil {
		if err == io.EOF {
			return nil, ulerr.Wrap(ulerr.KindNoPDUAvailable, err, "no PDU available")
		}
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading PDU type byte")
	}
	if _, err := io.ReadFull(r, header[1:6]); err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading PDU header")
	}
	pduType := Type(header[0])
	length := binary.BigEndian.Uint32(header[2:6])
	if length > maxPDUSize {
		return nil, ulerr.New(ulerr.KindPDUTooLarge, "PDU declares length %d, max is %d", length, maxPDUSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading %d-byte PDU body", length)
	}

	d := dicomio.NewReader(bufio.NewReader(bytes.NewReader(body)), binary.BigEndian, int64(length))

	switch pduType {
	case TypeAssociateRQ, TypeAssociateAC:
		return readAssociate(d, pduType)
	case TypeAssociateRJ:
		return readAssociateRJ(d)
	case TypePData:
		return readPData(d)
	case TypeReleaseRQ:
		return ReleaseRQ{}, nil
	case TypeReleaseRP:
		return ReleaseRP{}, nil
	case TypeAbortRQ:
		return readAbortRQ(d)
	default:
		return Unknown{PDUType: pduType, Payload: body}, nil
	}
}

// WritePDU encodes pdu and writes it to w in a single Write call, so a
// concurrent reader on the other end never observes a torn header.
func WritePDU(w io.Writer, pdu PDU) error {
	var payload []byte
	var err error

	switch v := pdu.(type) {
	case Unknown:
		payload = v.Payload
	case *AssociateRQContainer:
		payload, err = v.writePayload()
	case *AssociateACContainer:
		payload, err = v.writePayload()
	case *AssociateRJContainer:
		payload, err = writeAssociateRJ(v)
	case *PDataContainer:
		payload, err = writePData(v)
	case ReleaseRQ:
		payload = make([]byte, 4)
	case ReleaseRP:
		payload = make([]byte, 4)
	case *AbortRQContainer:
		payload, err = writeAbortRQ(v)
	default:
		return ulerr.New(ulerr.KindInvalidPDU, "unwritable PDU value %T", pdu)
	}
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(pdu.Kind()))
	buf.WriteByte(0)
	if err := WriteChunkU32(&buf, func(body *bytes.Buffer) error {
		body.Write(payload)
		return nil
	}); err != nil {
		return err
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return ulerr.Wrap(ulerr.KindIO, err, "writing %s PDU", pdu.Kind())
	}
	return nil
}
