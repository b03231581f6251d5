package pdu

import (
	"bytes"

	"github.com/mjpearson/dicomul/ulerr"
	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// PDataValueType distinguishes a command PDV from a data-set PDV; both
// share the same presentation-data-value wire shape (PS3.8 9.3.5.1).
type PDataValueType byte

const (
	PDataValueTypeCommand PDataValueType = iota
	PDataValueTypeData
)

// PDataValue is one presentation-data-value item inside a P-DATA-TF PDU.
type PDataValue struct {
	PresentationContextID byte
	ValueType             PDataValueType
	IsLast                bool
	Data                  []byte
}

// PDataContainer is the decoded payload of a P-DATA-TF PDU: one or more
// PDVs, possibly from different presentation contexts and possibly
// fragments of a single command or data set (see the reassembler).
type PDataContainer struct {
	Values []PDataValue
}

func (*PDataContainer) Kind() Type { return TypePData }

func readPData(d *dicomio.Reader) (PDU, error) {
	c := &PDataContainer{}
	for d.BytesLeftUntilLimit() > 0 {
		length, err := d.ReadUInt32()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading PDV length")
		}
		if length < 2 {
			return nil, ulerr.New(ulerr.KindInvalidPData, "PDV length %d is too small to hold context id and header", length)
		}
		contextID, err := d.ReadUInt8()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading PDV context id")
		}
		header, err := d.ReadUInt8()
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading PDV header byte")
		}
		data, err := readBytes(d, int(length)-2)
		if err != nil {
			return nil, ulerr.Wrap(ulerr.KindIO, err, "reading %d-byte PDV value", length-2)
		}
		valueType := PDataValueTypeData
		if header&0x01 != 0 {
			valueType = PDataValueTypeCommand
		}
		c.Values = append(c.Values, PDataValue{
			PresentationContextID: contextID,
			ValueType:             valueType,
			IsLast:                header&0x02 != 0,
			Data:                  data,
		})
	}
	return c, nil
}

func writePData(c *PDataContainer) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range c.Values {
		var header byte
		if v.ValueType == PDataValueTypeCommand {
			header |= 0x01
		}
		if v.IsLast {
			header |= 0x02
		}
		if err := WriteChunkU32(&buf, func(body *bytes.Buffer) error {
			body.WriteByte(v.PresentationContextID)
			body.WriteByte(header)
			body.Write(v.Data)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
