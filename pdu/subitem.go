package pdu

import (
	"bytes"
	"encoding/binary"

	"github.com/mjpearson/dicomul/ulerr"
	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// ItemType is the one-byte type field every nested sub-item opens with.
type ItemType byte

const (
	ItemTypeApplicationContext          ItemType = 0x10
	ItemTypePresentationContextRequest  ItemType = 0x20
	ItemTypePresentationContextResponse ItemType = 0x21
	ItemTypeAbstractSyntax              ItemType = 0x30
	ItemTypeTransferSyntax              ItemType = 0x40
	ItemTypeUserInformation             ItemType = 0x50
	ItemTypeUserInformationMaxLength    ItemType = 0x51
	ItemTypeImplementationClassUID      ItemType = 0x52
	ItemTypeAsyncOperationsWindow       ItemType = 0x53
	ItemTypeRoleSelection               ItemType = 0x54
	ItemTypeImplementationVersionName   ItemType = 0x55
)

// DICOMApplicationContextName is the application context this codec writes
// when a container's ApplicationContextName is empty; any other value is
// written as given, and any value decoded from the wire is preserved (as a
// plain string) rather than rejected.
const DICOMApplicationContextName = "1.2.840.10008.3.1.1.1"

func readItemHeader(d *dicomio.Reader) (ItemType, uint16, error) {
	t, err := d.ReadUInt8()
	if err != nil {
		return 0, 0, ulerr.Wrap(ulerr.KindIO, err, "reading sub-item type")
	}
	d.Skip(1)
	length, err := d.ReadUInt16()
	if err != nil {
		return 0, 0, ulerr.Wrap(ulerr.KindIO, err, "reading sub-item length")
	}
	if left := d.BytesLeftUntilLimit(); uint64(left) < uint64(length) {
		return 0, 0, ulerr.New(ulerr.KindInvalidPDU, "sub-item 0x%02x declares length %d, only %d bytes remain", t, length, left)
	}
	return ItemType(t), length, nil
}

func writeItemHeader(e *dicomio.Writer, t ItemType, length int) error {
	if err := e.WriteByte(byte(t)); err != nil {
		return err
	}
	if err := e.WriteZeros(1); err != nil {
		return err
	}
	return e.WriteUInt16(uint16(length))
}

func readUIDString(d *dicomio.Reader, length uint16) (string, error) {
	s, err := d.ReadString(uint32(length))
	if err != nil {
		return "", ulerr.Wrap(ulerr.KindIO, err, "reading %d-byte UID string", length)
	}
	return s, nil
}

func readBytes(d *dicomio.Reader, n int) ([]byte, error) {
	s, err := d.ReadString(uint32(n))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func writeUIDItem(buf *bytes.Buffer, t ItemType, uid string) error {
	e := dicomio.NewWriter(buf, binary.BigEndian, false)
	if err := writeItemHeader(e, t, len(uid)); err != nil {
		return err
	}
	return e.WriteString(uid)
}
