package datasetdecoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// CommandField identifies the DIMSE operation a command set carries.
// Only the Verification service class's two command fields are named here;
// the C-STORE/C-FIND/C-GET/C-MOVE/N-* fields PS3.7 E.1 defines are out of
// scope for this collaborator.
type CommandField uint16

const (
	CommandFieldCEchoRq  CommandField = 0x0030
	CommandFieldCEchoRsp CommandField = 0x8030
)

// CommandDataSetType indicates, per PS3.7 E.2, whether a command carries a
// following data set (any value other than CommandDataSetTypeNull does).
type CommandDataSetType uint16

const (
	CommandDataSetTypeNull    CommandDataSetType = 0x0101
	CommandDataSetTypeNonNull CommandDataSetType = 0x0001
)

// Command is a decoded DIMSE command set. The Verification service class
// only ever produces EchoRq and EchoRsp values.
type Command interface {
	fmt.Stringer
	CommandField() CommandField
	MessageID() uint16
	HasData() bool
	Encode(io.Writer) error
}

// EchoRq is a decoded C-ECHO-RQ command set.
type EchoRq struct {
	ID                  uint16
	AffectedSOPClassUID string
	CommandDataSetType  CommandDataSetType
	Extra               []*dicom.Element
}

func (v *EchoRq) CommandField() CommandField { return CommandFieldCEchoRq }
func (v *EchoRq) MessageID() uint16          { return v.ID }
func (v *EchoRq) HasData() bool              { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *EchoRq) String() string {
	return fmt.Sprintf("EchoRq{MessageID:%d AffectedSOPClassUID:%s}", v.ID, v.AffectedSOPClassUID)
}

func (v *EchoRq) Encode(w io.Writer) error {
	elems := []*dicom.Element{}
	elem, err := newElement(tagCommandField, []int{int(CommandFieldCEchoRq)})
	if err != nil {
		return fmt.Errorf("EchoRq.Encode: command field: %w", err)
	}
	elems = append(elems, elem)
	if elem, err = newElement(tagAffectedSOPClassUID, []string{v.AffectedSOPClassUID}); err != nil {
		return fmt.Errorf("EchoRq.Encode: affected SOP class UID: %w", err)
	}
	elems = append(elems, elem)
	if elem, err = newElement(tagMessageID, []int{int(v.ID)}); err != nil {
		return fmt.Errorf("EchoRq.Encode: message ID: %w", err)
	}
	elems = append(elems, elem)
	if elem, err = newElement(tagCommandDataSetType, []int{int(v.CommandDataSetType)}); err != nil {
		return fmt.Errorf("EchoRq.Encode: command data set type: %w", err)
	}
	elems = append(elems, elem)
	elems = append(elems, v.Extra...)
	return encodeElements(w, elems)
}

func decodeEchoRq(d *messageDecoder) (*EchoRq, error) {
	v := &EchoRq{}
	var err error
	if v.AffectedSOPClassUID, err = d.getString(tagAffectedSOPClassUID, requiredElement); err != nil {
		return nil, fmt.Errorf("decodeEchoRq: affected SOP class UID: %w", err)
	}
	id, err := d.getUint16(tagMessageID, requiredElement)
	if err != nil {
		return nil, fmt.Errorf("decodeEchoRq: message ID: %w", err)
	}
	v.ID = id
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, fmt.Errorf("decodeEchoRq: command data set type: %w", err)
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// EchoRsp is a decoded or constructed C-ECHO-RSP command set.
type EchoRsp struct {
	MessageIDBeingRespondedTo uint16
	CommandDataSetType        CommandDataSetType
	Status                    Status
	Extra                     []*dicom.Element
}

func (v *EchoRsp) CommandField() CommandField { return CommandFieldCEchoRsp }
func (v *EchoRsp) MessageID() uint16          { return v.MessageIDBeingRespondedTo }
func (v *EchoRsp) HasData() bool              { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *EchoRsp) String() string {
	return fmt.Sprintf("EchoRsp{MessageIDBeingRespondedTo:%d Status:%s}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func (v *EchoRsp) Encode(w io.Writer) error {
	elems := []*dicom.Element{}
	elem, err := newElement(tagCommandField, []int{int(CommandFieldCEchoRsp)})
	if err != nil {
		return fmt.Errorf("EchoRsp.Encode: command field: %w", err)
	}
	elems = append(elems, elem)
	if elem, err = newElement(tagMessageIDBeingRespondTo, []int{int(v.MessageIDBeingRespondedTo)}); err != nil {
		return fmt.Errorf("EchoRsp.Encode: message ID being responded to: %w", err)
	}
	elems = append(elems, elem)
	if elem, err = newElement(tagCommandDataSetType, []int{int(v.CommandDataSetType)}); err != nil {
		return fmt.Errorf("EchoRsp.Encode: command data set type: %w", err)
	}
	elems = append(elems, elem)
	if elem, err = newElement(tagStatus, []int{int(v.Status.Code)}); err != nil {
		return fmt.Errorf("EchoRsp.Encode: status: %w", err)
	}
	elems = append(elems, elem)
	if v.Status.ErrorComment != "" {
		if elem, err = newElement(tagErrorComment, []string{v.Status.ErrorComment}); err != nil {
			return fmt.Errorf("EchoRsp.Encode: error comment: %w", err)
		}
		elems = append(elems, elem)
	}
	elems = append(elems, v.Extra...)
	return encodeElements(w, elems)
}

func decodeEchoRsp(d *messageDecoder) (*EchoRsp, error) {
	v := &EchoRsp{}
	id, err := d.getUint16(tagMessageIDBeingRespondTo, requiredElement)
	if err != nil {
		return nil, fmt.Errorf("decodeEchoRsp: message ID being responded to: %w", err)
	}
	v.MessageIDBeingRespondedTo = id
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, fmt.Errorf("decodeEchoRsp: command data set type: %w", err)
	}
	if v.Status, err = d.getStatus(); err != nil {
		return nil, fmt.Errorf("decodeEchoRsp: status: %w", err)
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// NewEchoResponse builds the C-ECHO-RSP command set answering rq with the
// given status; its Extra is always empty.
func NewEchoResponse(rq *EchoRq, status Status) *EchoRsp {
	return &EchoRsp{
		MessageIDBeingRespondedTo: rq.ID,
		CommandDataSetType:        CommandDataSetTypeNull,
		Status:                    status,
	}
}

// DecodeCommand parses a reassembled command-set byte payload (always
// Implicit VR Little Endian, PS3.7 6.3.1) and dispatches on its CommandField
// to the concrete Command type.
func DecodeCommand(raw []byte) (Command, error) {
	r := bytes.NewReader(raw)
	ds, err := dicom.Parse(r, int64(r.Len()), nil, dicom.SkipPixelData(), dicom.SkipMetadataReadOnNewParserInit())
	if err != nil {
		return nil, fmt.Errorf("DecodeCommand: parse command set: %w", err)
	}
	d := newMessageDecoder(&ds)
	field, err := d.getUint16(tagCommandField, requiredElement)
	if err != nil {
		return nil, fmt.Errorf("DecodeCommand: command field: %w", err)
	}
	switch CommandField(field) {
	case CommandFieldCEchoRq:
		return decodeEchoRq(d)
	case CommandFieldCEchoRsp:
		return decodeEchoRsp(d)
	default:
		return nil, fmt.Errorf("DecodeCommand: unsupported command field 0x%04x", field)
	}
}

// EncodeCommand serializes cmd as Implicit VR Little Endian bytes, the form
// DIMSE command sets always use regardless of the presentation context's
// negotiated transfer syntax (PS3.7 6.3.1).
func EncodeCommand(cmd Command) ([]byte, error) {
	var body bytes.Buffer
	if err := cmd.Encode(&body); err != nil {
		return nil, fmt.Errorf("EncodeCommand: %w", err)
	}
	var out bytes.Buffer
	w, err := dicom.NewWriter(&out)
	if err != nil {
		return nil, fmt.Errorf("EncodeCommand: new writer: %w", err)
	}
	w.SetTransferSyntax(binary.LittleEndian, true)
	lengthElem, err := dicom.NewElement(tag.Tag{Group: 0x0000, Element: 0x0000}, []int{body.Len()})
	if err != nil {
		return nil, fmt.Errorf("EncodeCommand: command group length element: %w", err)
	}
	if err := w.WriteElement(lengthElem); err != nil {
		return nil, fmt.Errorf("EncodeCommand: write command group length: %w", err)
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func newElement(t tag.Tag, value interface{}) (*dicom.Element, error) {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", t.String(), err)
	}
	return elem, nil
}

func encodeElements(w io.Writer, elems []*dicom.Element) error {
	writer, err := dicom.NewWriter(w)
	if err != nil {
		return fmt.Errorf("encodeElements: new writer: %w", err)
	}
	writer.SetTransferSyntax(binary.LittleEndian, true)
	for _, elem := range elems {
		if err := writer.WriteElement(elem); err != nil {
			return fmt.Errorf("encodeElements: write element %s: %w", elem.Tag.String(), err)
		}
	}
	return nil
}
