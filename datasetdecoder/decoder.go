package datasetdecoder

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// elementRequirement distinguishes elements a command must carry from ones
// that are merely optional.
type elementRequirement int

const (
	requiredElement elementRequirement = iota
	optionalElement
)

// messageDecoder indexes a parsed command dataset by tag so a command's
// decode step can pull out fields by name, deleting each as it's consumed so
// unparsedElements reports only what the command type didn't recognize.
type messageDecoder struct {
	elements map[tag.Tag]*dicom.Element
}

func newMessageDecoder(ds *dicom.Dataset) *messageDecoder {
	d := &messageDecoder{elements: make(map[tag.Tag]*dicom.Element, len(ds.Elements))}
	for _, elem := range ds.Elements {
		d.elements[elem.Tag] = elem
	}
	return d
}

func (d *messageDecoder) unparsedElements() []*dicom.Element {
	elems := make([]*dicom.Element, 0, len(d.elements))
	for _, elem := range d.elements {
		elems = append(elems, elem)
	}
	return elems
}

func (d *messageDecoder) getUint16(t tag.Tag, req elementRequirement) (uint16, error) {
	elem := d.elements[t]
	if elem == nil {
		if req == requiredElement {
			return 0, fmt.Errorf("datasetdecoder: required tag %s not found", t.String())
		}
		return 0, nil
	}
	if elem.Value == nil || elem.Value.ValueType() != dicom.Ints {
		return 0, fmt.Errorf("datasetdecoder: tag %s is not an int element", t.String())
	}
	v, ok := elem.Value.GetValue().([]int)
	if !ok || len(v) == 0 {
		return 0, fmt.Errorf("datasetdecoder: tag %s has no int value", t.String())
	}
	if v[0] < 0 || v[0] > 0xFFFF {
		return 0, fmt.Errorf("datasetdecoder: tag %s value %d out of uint16 range", t.String(), v[0])
	}
	delete(d.elements, t)
	return uint16(v[0]), nil
}

func (d *messageDecoder) getString(t tag.Tag, req elementRequirement) (string, error) {
	elem := d.elements[t]
	if elem == nil {
		if req == requiredElement {
			return "", fmt.Errorf("datasetdecoder: required tag %s not found", t.String())
		}
		return "", nil
	}
	if elem.Value == nil {
		return "", fmt.Errorf("datasetdecoder: tag %s has no value", t.String())
	}
	v, ok := elem.Value.GetValue().([]string)
	if !ok {
		return "", fmt.Errorf("datasetdecoder: tag %s is not a string element", t.String())
	}
	if len(v) == 0 {
		return "", nil
	}
	delete(d.elements, t)
	return v[0], nil
}

func (d *messageDecoder) getCommandDataSetType() (CommandDataSetType, error) {
	v, err := d.getUint16(tagCommandDataSetType, requiredElement)
	if err != nil {
		return CommandDataSetTypeNull, err
	}
	return CommandDataSetType(v), nil
}

func (d *messageDecoder) getStatus() (Status, error) {
	code, err := d.getUint16(tagStatus, requiredElement)
	if err != nil {
		return Status{}, err
	}
	comment, err := d.getString(tagErrorComment, optionalElement)
	if err != nil {
		return Status{}, err
	}
	return Status{Code: StatusCode(code), ErrorComment: comment}, nil
}
