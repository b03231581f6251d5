package pdu

import (
	"bytes"
	"encoding/binary"

	"github.com/mjpearson/dicomul/ulerr"
	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// AssociateRQContainer is the decoded payload of an A-ASSOCIATE-RQ PDU.
type AssociateRQContainer struct {
	ProtocolVersion        uint16
	CalledAETitle          string
	CallingAETitle         string
	ApplicationContextName string
	PresentationContexts   []PresentationContextProposed
	UserVariables          []UserVariableItem
}

func (*AssociateRQContainer) Kind() Type { return TypeAssociateRQ }

// AssociateACContainer is the decoded payload of an A-ASSOCIATE-AC PDU. The
// called/calling AE titles are carried unchanged from the request per
// PS3.8 9.3.3; they aren't re-validated here.
type AssociateACContainer struct {
	ProtocolVersion        uint16
	CalledAETitle          string
	CallingAETitle         string
	ApplicationContextName string
	PresentationContexts   []PresentationContextResult
	UserVariables          []UserVariableItem
}

func (*AssociateACContainer) Kind() Type { return TypeAssociateAC }

// AssociationRJResult is the A-ASSOCIATE-RJ result field: whether the
// requester may retry the association unchanged.
type AssociationRJResult byte

const (
	AssociationRJResultRejectedPermanent AssociationRJResult = 1
	AssociationRJResultRejectedTransient AssociationRJResult = 2
)

// AssociationRJSource identifies which layer produced the rejection, each
// with its own nested reason enumeration (PS3.8 9.3.4, table 9-21).
type AssociationRJSource byte

const (
	AssociationRJSourceServiceUser                 AssociationRJSource = 1
	AssociationRJSourceServiceProviderACSE         AssociationRJSource = 2
	AssociationRJSourceServiceProviderPresentation AssociationRJSource = 3
)

// AssociationRJServiceUserReason enumerates reasons when Source is
// ServiceUser.
type AssociationRJServiceUserReason byte

const (
	AssociationRJServiceUserNoReasonGiven                      AssociationRJServiceUserReason = 1
	AssociationRJServiceUserApplicationContextNameNotSupported AssociationRJServiceUserReason = 2
	AssociationRJServiceUserCallingAETitleNotRecognized        AssociationRJServiceUserReason = 3
	AssociationRJServiceUserCalledAETitleNotRecognized         AssociationRJServiceUserReason = 7
)

// AssociationRJServiceProviderACSEReason enumerates reasons when Source is
// ServiceProviderACSE.
type AssociationRJServiceProviderACSEReason byte

const (
	AssociationRJACSENoReasonGiven               AssociationRJServiceProviderACSEReason = 1
	AssociationRJACSEProtocolVersionNotSupported AssociationRJServiceProviderACSEReason = 2
)

// AssociationRJServiceProviderPresentationReason enumerates reasons when
// Source is ServiceProviderPresentation.
type AssociationRJServiceProviderPresentationReason byte

const (
	AssociationRJPresentationTemporaryCongestion AssociationRJServiceProviderPresentationReason = 1
	AssociationRJPresentationLocalLimitExceeded  AssociationRJServiceProviderPresentationReason = 2
)

// AssociateRJContainer is the decoded payload of an A-ASSOCIATE-RJ PDU. The
// Reason field's meaning depends on Source; it is stored as a raw byte and
// the caller interprets it against whichever *Reason enum matches Source.
type AssociateRJContainer struct {
	Result AssociationRJResult
	Source AssociationRJSource
	Reason byte
}

func (*AssociateRJContainer) Kind() Type { return TypeAssociateRJ }

func readAssociate(d *dicomio.Reader, pduType Type) (PDU, error) {
	protocolVersion, err := d.ReadUInt16()
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading protocol version")
	}
	d.Skip(2)
	calledAET, err := d.ReadString(16)
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading called AE title")
	}
	callingAET, err := d.ReadString(16)
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading calling AE title")
	}
	d.Skip(32)

	var appContext string
	var rqContexts []PresentationContextProposed
	var acContexts []PresentationContextResult
	var userVars []UserVariableItem

	for d.BytesLeftUntilLimit() > 0 {
		t, length, err := readItemHeader(d)
		if err != nil {
			return nil, err
		}
		switch t {
		case ItemTypeApplicationContext:
			appContext, err = readUIDString(d, length)
			if err != nil {
				return nil, err
			}
		case ItemTypePresentationContextRequest:
			pc, err := readPresentationContextRQ(d, length)
			if err != nil {
				return nil, err
			}
			rqContexts = append(rqContexts, pc)
		case ItemTypePresentationContextResponse:
			pc, err := readPresentationContextAC(d, length)
			if err != nil {
				return nil, err
			}
			acContexts = append(acContexts, pc)
		case ItemTypeUserInformation:
			userVars, err = readUserInformation(d, length)
			if err != nil {
				return nil, err
			}
		default:
			d.Skip(int64(length))
		}
	}

	if pduType == TypeAssociateRQ {
		return &AssociateRQContainer{
			ProtocolVersion:        protocolVersion,
			CalledAETitle:          trimAET(calledAET),
			CallingAETitle:         trimAET(callingAET),
			ApplicationContextName: appContext,
			PresentationContexts:   rqContexts,
			UserVariables:          userVars,
		}, nil
	}
	return &AssociateACContainer{
		ProtocolVersion:        protocolVersion,
		CalledAETitle:          trimAET(calledAET),
		CallingAETitle:         trimAET(callingAET),
		ApplicationContextName: appContext,
		PresentationContexts:   acContexts,
		UserVariables:          userVars,
	}, nil
}

func (c *AssociateRQContainer) writePayload() ([]byte, error) {
	var buf bytes.Buffer
	e := dicomio.NewWriter(&buf, binary.BigEndian, false)
	if err := e.WriteUInt16(c.ProtocolVersion); err != nil {
		return nil, err
	}
	if err := e.WriteZeros(2); err != nil {
		return nil, err
	}
	if err := e.WriteString(padAET(c.CalledAETitle)); err != nil {
		return nil, err
	}
	if err := e.WriteString(padAET(c.CallingAETitle)); err != nil {
		return nil, err
	}
	if err := e.WriteZeros(32); err != nil {
		return nil, err
	}

	appContext := c.ApplicationContextName
	if appContext == "" {
		appContext = DICOMApplicationContextName
	}
	if err := writeUIDItem(&buf, ItemTypeApplicationContext, appContext); err != nil {
		return nil, err
	}
	for _, pc := range c.PresentationContexts {
		if err := writePresentationContextRQ(&buf, pc); err != nil {
			return nil, err
		}
	}
	if err := writeUserInformation(&buf, c.UserVariables); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *AssociateACContainer) writePayload() ([]byte, error) {
	var buf bytes.Buffer
	e := dicomio.NewWriter(&buf, binary.BigEndian, false)
	if err := e.WriteUInt16(c.ProtocolVersion); err != nil {
		return nil, err
	}
	if err := e.WriteZeros(2); err != nil {
		return nil, err
	}
	if err := e.WriteString(padAET(c.CalledAETitle)); err != nil {
		return nil, err
	}
	if err := e.WriteString(padAET(c.CallingAETitle)); err != nil {
		return nil, err
	}
	if err := e.WriteZeros(32); err != nil {
		return nil, err
	}

	appContext := c.ApplicationContextName
	if appContext == "" {
		appContext = DICOMApplicationContextName
	}
	if err := writeUIDItem(&buf, ItemTypeApplicationContext, appContext); err != nil {
		return nil, err
	}
	for _, pc := range c.PresentationContexts {
		if err := writePresentationContextAC(&buf, pc); err != nil {
			return nil, err
		}
	}
	if err := writeUserInformation(&buf, c.UserVariables); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readAssociateRJ(d *dicomio.Reader) (PDU, error) {
	d.Skip(1)
	result, err := d.ReadUInt8()
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading RJ result")
	}
	source, err := d.ReadUInt8()
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading RJ source")
	}
	reason, err := d.ReadUInt8()
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading RJ reason")
	}
	return &AssociateRJContainer{
		Result: AssociationRJResult(result),
		Source: AssociationRJSource(source),
		Reason: reason,
	}, nil
}

func writeAssociateRJ(c *AssociateRJContainer) ([]byte, error) {
	return []byte{0, byte(c.Result), byte(c.Source), c.Reason}, nil
}

func trimAET(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	return s[:i]
}

func padAET(s string) string {
	if len(s) >= 16 {
		return s[:16]
	}
	for len(s) < 16 {
		s += " "
	}
	return s
}
