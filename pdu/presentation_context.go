package pdu

import (
	"bytes"

	"github.com/mjpearson/dicomul/ulerr"
	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// PresentationContextProposed is one presentation context as carried in an
// A-ASSOCIATE-RQ: an odd context ID, one abstract syntax, and one or more
// candidate transfer syntaxes.
type PresentationContextProposed struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
}

// PresentationContextResultReason is the one-byte result/reason field of a
// presentation context item inside an A-ASSOCIATE-AC.
type PresentationContextResultReason byte

const (
	PresentationContextAcceptance                   PresentationContextResultReason = 0
	PresentationContextUserRejection                PresentationContextResultReason = 1
	PresentationContextNoReason                     PresentationContextResultReason = 2
	PresentationContextAbstractSyntaxNotSupported   PresentationContextResultReason = 3
	PresentationContextTransferSyntaxesNotSupported PresentationContextResultReason = 4
)

// PresentationContextResult is one presentation context item as carried in
// an A-ASSOCIATE-AC: the ID echoes the proposal, TransferSyntax is set only
// when Reason is Acceptance.
type PresentationContextResult struct {
	ID             byte
	Reason         PresentationContextResultReason
	TransferSyntax string
}

func readPresentationContextRQ(d *dicomio.Reader, length uint16) (PresentationContextProposed, error) {
	pc := PresentationContextProposed{}
	d.PushLimit(int64(length))
	defer d.PopLimit()

	id, err := d.ReadUInt8()
	if err != nil {
		return pc, ulerr.Wrap(ulerr.KindIO, err, "reading presentation context id")
	}
	pc.ID = id
	d.Skip(3)

	for d.BytesLeftUntilLimit() > 0 {
		t, l, err := readItemHeader(d)
		if err != nil {
			return pc, err
		}
		switch t {
		case ItemTypeAbstractSyntax:
			uid, err := readUIDString(d, l)
			if err != nil {
				return pc, err
			}
			pc.AbstractSyntax = uid
		case ItemTypeTransferSyntax:
			uid, err := readUIDString(d, l)
			if err != nil {
				return pc, err
			}
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, uid)
		default:
			d.Skip(int64(l))
		}
	}
	return pc, nil
}

// writePresentationContextRQ appends one complete presentation-context-RQ
// sub-item (type 0x20) to buf.
func writePresentationContextRQ(buf *bytes.Buffer, pc PresentationContextProposed) error {
	buf.WriteByte(byte(ItemTypePresentationContextRequest))
	buf.WriteByte(0)
	return WriteChunkU16(buf, func(body *bytes.Buffer) error {
		body.WriteByte(pc.ID)
		body.Write([]byte{0, 0, 0})
		if err := writeUIDItem(body, ItemTypeAbstractSyntax, pc.AbstractSyntax); err != nil {
			return err
		}
		for _, ts := range pc.TransferSyntaxes {
			if err := writeUIDItem(body, ItemTypeTransferSyntax, ts); err != nil {
				return err
			}
		}
		return nil
	})
}

func readPresentationContextAC(d *dicomio.Reader, length uint16) (PresentationContextResult, error) {
	pc := PresentationContextResult{}
	d.PushLimit(int64(length))
	defer d.PopLimit()

	id, err := d.ReadUInt8()
	if err != nil {
		return pc, ulerr.Wrap(ulerr.KindIO, err, "reading presentation context id")
	}
	pc.ID = id
	d.Skip(1)
	reason, err := d.ReadUInt8()
	if err != nil {
		return pc, ulerr.Wrap(ulerr.KindIO, err, "reading presentation context reason")
	}
	pc.Reason = PresentationContextResultReason(reason)
	d.Skip(1)

	for d.BytesLeftUntilLimit() > 0 {
		t, l, err := readItemHeader(d)
		if err != nil {
			return pc, err
		}
		if t == ItemTypeTransferSyntax {
			uid, err := readUIDString(d, l)
			if err != nil {
				return pc, err
			}
			pc.TransferSyntax = uid
		} else {
			d.Skip(int64(l))
		}
	}
	return pc, nil
}

func writePresentationContextAC(buf *bytes.Buffer, pc PresentationContextResult) error {
	buf.WriteByte(byte(ItemTypePresentationContextResponse))
	buf.WriteByte(0)
	return WriteChunkU16(buf, func(body *bytes.Buffer) error {
		body.WriteByte(pc.ID)
		body.WriteByte(0)
		body.WriteByte(byte(pc.Reason))
		body.WriteByte(0)
		if pc.TransferSyntax != "" {
			return writeUIDItem(body, ItemTypeTransferSyntax, pc.TransferSyntax)
		}
		return nil
	})
}
