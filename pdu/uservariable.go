package pdu

import (
	"bytes"
	"encoding/binary"

	"github.com/mjpearson/dicomul/ulerr"
	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// UserVariableItem is one entry of the user-information sub-item list
// nested inside an A-ASSOCIATE-RQ/AC's user-information item (type 0x50).
type UserVariableItem interface {
	itemType() ItemType
}

// MaxLengthItem (0x51) advertises the largest PDU the sender is willing to
// receive; every association carries exactly one.
type MaxLengthItem struct {
	MaxLengthReceived uint32
}

func (MaxLengthItem) itemType() ItemType { return ItemTypeUserInformationMaxLength }

// ImplementationClassUIDItem (0x52) identifies the peer's implementation.
type ImplementationClassUIDItem struct {
	UID string
}

func (ImplementationClassUIDItem) itemType() ItemType { return ItemTypeImplementationClassUID }

// ImplementationVersionNameItem (0x55) is an optional free-text version tag.
type ImplementationVersionNameItem struct {
	Name string
}

func (ImplementationVersionNameItem) itemType() ItemType { return ItemTypeImplementationVersionName }

// AsyncOperationsWindowItem (0x53) negotiates the count of operations each
// side may have outstanding at once; decoded and preserved rather than
// discarded.
type AsyncOperationsWindowItem struct {
	MaxOperationsInvoked   uint16
	MaxOperationsPerformed uint16
}

func (AsyncOperationsWindowItem) itemType() ItemType { return ItemTypeAsyncOperationsWindow }

// RoleSelectionItem (0x54) negotiates SCU/SCP role per abstract syntax.
type RoleSelectionItem struct {
	SOPClassUID string
	SCURole     byte
	SCPRole     byte
}

func (RoleSelectionItem) itemType() ItemType { return ItemTypeRoleSelection }

// UnknownUserVariableItem preserves a sub-item type this codec doesn't
// recognize, keeping the same "preserve, don't drop" behavior ReadPDU uses
// for top-level PDUs.
type UnknownUserVariableItem struct {
	Type ItemType
	Data []byte
}

func (u UnknownUserVariableItem) itemType() ItemType { return u.Type }

func readUserInformation(d *dicomio.Reader, length uint16) ([]UserVariableItem, error) {
	var items []UserVariableItem
	d.PushLimit(int64(length))
	defer d.PopLimit()

	for d.BytesLeftUntilLimit() > 0 {
		t, l, err := readItemHeader(d)
		if err != nil {
			return nil, err
		}
		item, err := readUserVariableItem(d, t, l)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func readUserVariableItem(d *dicomio.Reader, t ItemType, length uint16) (UserVariableItem, error) {
	switch t {
	case ItemTypeUserInformationMaxLength:
		v, err := d.ReadUInt32()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading max-length item")
		}
		return MaxLengthItem{MaxLengthReceived: v}, nil
	case ItemTypeImplementationClassUID:
		s, err := readUIDString(d, length)
		if err != nil {
			return nil, err
		}
		return ImplementationClassUIDItem{UID: s}, nil
	case ItemTypeImplementationVersionName:
		s, err := readUIDString(d, length)
		if err != nil {
			return nil, err
		}
		return ImplementationVersionNameItem{Name: s}, nil
	case ItemTypeAsyncOperationsWindow:
		invoked, err := d.ReadUInt16()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading async-ops-window invoked count")
		}
		performed, err := d.ReadUInt16()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading async-ops-window performed count")
		}
		return AsyncOperationsWindowItem{MaxOperationsInvoked: invoked, MaxOperationsPerformed: performed}, nil
	case ItemTypeRoleSelection:
		uidLen, err := d.ReadUInt16()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading role-selection UID length")
		}
		uid, err := readUIDString(d, uidLen)
		if err != nil {
			return nil, err
		}
		scu, err := d.ReadUInt8()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading role-selection SCU role")
		}
		scp, err := d.ReadUInt8()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading role-selection SCP role")
		}
		return RoleSelectionItem{SOPClassUID: uid, SCURole: scu, SCPRole: scp}, nil
	default:
		data, err := readBytes(d, int(length))
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading unknown user-variable item 0x%02x", byte(t))
		}
		return UnknownUserVariableItem{Type: t, Data: data}, nil
	}
}

func writeUserInformation(buf *bytes.Buffer, items []UserVariableItem) error {
	buf.WriteByte(byte(ItemTypeUserInformation))
	buf.WriteByte(0)
	return WriteChunkU16(buf, func(body *bytes.Buffer) error {
		for _, item := range items {
			if err := writeUserVariableItem(body, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeUserVariableItem(buf *bytes.Buffer, item UserVariableItem) error {
	e := dicomio.NewWriter(buf, binary.BigEndian, false)
	switch v := item.(type) {
	case MaxLengthItem:
		if err := writeItemHeader(e, ItemTypeUserInformationMaxLength, 4); err != nil {
			return err
		}
		return e.WriteUInt32(v.MaxLengthReceived)
	case ImplementationClassUIDItem:
		if err := writeItemHeader(e, ItemTypeImplementationClassUID, len(v.UID)); err != nil {
			return err
		}
		return e.WriteString(v.UID)
	case ImplementationVersionNameItem:
		if err := writeItemHeader(e, ItemTypeImplementationVersionName, len(v.Name)); err != nil {
			return err
		}
		return e.WriteString(v.Name)
	case AsyncOperationsWindowItem:
		if err := writeItemHeader(e, ItemTypeAsyncOperationsWindow, 4); err != nil {
			return err
		}
		if err := e.WriteUInt16(v.MaxOperationsInvoked); err != nil {
			return err
		}
		return e.WriteUInt16(v.MaxOperationsPerformed)
	case RoleSelectionItem:
		if err := writeItemHeader(e, ItemTypeRoleSelection, 2+len(v.SOPClassUID)+2); err != nil {
			return err
		}
		if err := e.WriteUInt16(uint16(len(v.SOPClassUID))); err != nil {
			return err
		}
		if err := e.WriteString(v.SOPClassUID); err != nil {
			return err
		}
		if err := e.WriteByte(v.SCURole); err != nil {
			return err
		}
		return e.WriteByte(v.SCPRole)
	case UnknownUserVariableItem:
		if err := writeItemHeader(e, v.Type, len(v.Data)); err != nil {
			return err
		}
		return e.WriteBytes(v.Data)
	default:
		return ulerr.New(ulerr.KindInvalidPDU, "unwritable user-variable item %T", item)
	}
}
