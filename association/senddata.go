package association

import (
	godicom "github.com/grailbio/go-dicom"
	"github.com/mjpearson/dicomul/datasetdecoder"
	"github.com/mjpearson/dicomul/fsm"
	"github.com/mjpearson/dicomul/negotiate"
	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/reassemble"
	"github.com/mjpearson/dicomul/ulerr"
)

// ReceivedMessage is one fully reassembled application message handed back
// by ReceiveDataSet.
type ReceivedMessage struct {
	PresentationContextID byte
	ValueType             pdu.PDataValueType
	Data                  []byte
}

// pduHeaderOverhead is the 6-byte top-level PDU header (type, reserved,
// 4-byte length); pdvFramingOverhead is the PDV's own length-plus-header
// framing (4-byte PDV length field, 1-byte context id, 1-byte control
// header) that SendDataSet must subtract from max_pdu_size to keep every
// outgoing P-DATA-TF PDU within the negotiated limit.
const (
	pduHeaderOverhead  = 6
	pdvFramingOverhead = 6
)

// effectiveMaxPDUSize is the smaller of this association's own configured
// max_pdu_size and the peer's advertised one, since the peer can only
// receive PDUs up to the size it told us in its A-ASSOCIATE-AC/RQ user
// information; the configured maximum bounds outgoing PDUs.
func (a *Association) effectiveMaxPDUSize() uint32 {
	m := a.options.maxPDUSize()
	if a.peerMaxPDUSize > 0 && a.peerMaxPDUSize < m {
		return a.peerMaxPDUSize
	}
	return m
}

// SendDataSet splits data into PDVs bounded by the effective max PDU size
// and feeds one PDataReq event per fragment, each becoming its own
// P-DATA-TF PDU.
func (a *Association) SendDataSet(contextID byte, valueType pdu.PDataValueType, data []byte) error {
	maxPDV := int(a.effectiveMaxPDUSize()) - pduHeaderOverhead - pdvFramingOverhead
	if maxPDV <= 0 {
		return ulerr.New(ulerr.KindPDUTooLarge, "effective max PDU size %d leaves no room for PDV payload", a.effectiveMaxPDUSize())
	}
	for _, v := range reassemble.SplitPDVs(contextID, valueType, data, maxPDV) {
		pd := &pdu.PDataContainer{Values: []pdu.PDataValue{v}}
		a.pendingSendPData = pd
		if err := a.sm.ProcessEvent(fsm.PDataReq(pd), a); err != nil {
			return err
		}
	}
	return nil
}

// receiveLoopEvent reads and dispatches exactly one transport condition
// into the state machine, then hands back whatever P-DATA-TF PDU
// DT2IndicatePData/AR6IndicatePData stashed. Any other outcome - peer
// abort, unexpected disconnect, a protocol violation the SM caught - is
// surfaced as an error instead.
func (a *Association) receiveLoopEvent() (*pdu.PDataContainer, error) {
	event, readErr := a.pumpOnce()
	if err := a.driveOneEvent(event, readErr); err != nil {
		return nil, err
	}
	if a.pendingError != nil {
		err := a.pendingError
		a.pendingError = nil
		return nil, err
	}
	if a.sm.State() == fsm.State08 {
		return nil, ulerr.New(ulerr.KindPeerRequestedRelease, "peer issued A-RELEASE-RQ; call RespondToRelease")
	}
	pd := a.takeCurrentPData()
	if pd == nil {
		return nil, ulerr.New(ulerr.KindInconsistentState, "expected a P-DATA-TF PDU, got event %s in state %s", event.Kind, a.sm.State())
	}
	return pd, nil
}

// ReceiveDataSet reassembles one complete command-or-data-set message
// across however many P-DATA-TF PDUs it spans. expectedType, if
// non-nil, is enforced against every PDV's value type; a mismatch reports
// KindUnexpectedPdvType.
func (a *Association) ReceiveDataSet(expectedType *pdu.PDataValueType) (*ReceivedMessage, error) {
	var asm reassemble.Assembler
	var want *reassemble.ExpectedType
	if expectedType != nil {
		want = &reassemble.ExpectedType{Type: *expectedType}
	}
	for {
		pd, err := a.receiveLoopEvent()
		if err != nil {
			if incomplete := asm.IncompleteOnClose(); incomplete != nil {
				return nil, incomplete
			}
			return nil, err
		}
		msg, ferr := asm.Feed(pd, want)
		if ferr != nil {
			return nil, ferr
		}
		if msg != nil {
			return &ReceivedMessage{
				PresentationContextID: msg.PresentationContextID,
				ValueType:             msg.ValueType,
				Data:                  msg.Data,
			}, nil
		}
	}
}

// commandValueType and dataValueType are the PDataValueType values
// ReceiveDataSet is told to expect by the typed wrappers below.
var (
	commandValueType = pdu.PDataValueTypeCommand
	dataValueType    = pdu.PDataValueTypeData
)

// acceptedContext finds the negotiated context with the given id.
func (a *Association) acceptedContext(id byte) (negotiate.AcceptedContext, bool) {
	for _, c := range a.AcceptedContexts {
		if c.ID == id {
			return c, true
		}
	}
	return negotiate.AcceptedContext{}, false
}

// DecodedDataSet is one data-set message decoded under the transfer syntax
// negotiated for the presentation context it arrived on.
type DecodedDataSet struct {
	Context  negotiate.AcceptedContext
	Elements []*godicom.Element
}

// ReadDataSet reassembles the next data-set message, resolves the transfer
// syntax its presentation context negotiated, and decodes the payload with
// it. A PDV referencing a context that was never negotiated reports
// KindInvalidPresentationContextID; a negotiated transfer syntax the
// registry doesn't know reports KindUnsupportedTransferSyntax.
func (a *Association) ReadDataSet() (*DecodedDataSet, error) {
	msg, err := a.ReceiveDataSet(&dataValueType)
	if err != nil {
		return nil, err
	}
	ctx, ok := a.acceptedContext(msg.PresentationContextID)
	if !ok {
		return nil, ulerr.New(ulerr.KindInvalidPresentationContextID,
			"PDV references presentation context %d, which was not negotiated", msg.PresentationContextID)
	}
	ts, err := datasetdecoder.LookupTransferSyntax(ctx.TransferSyntax)
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindUnsupportedTransferSyntax, err,
			"context %d negotiated transfer syntax %q", ctx.ID, ctx.TransferSyntax)
	}
	elems, err := datasetdecoder.DecodeDataSet(msg.Data, ts)
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindInvalidPData, err, "decoding data set on context %d", ctx.ID)
	}
	return &DecodedDataSet{Context: ctx, Elements: elems}, nil
}

// SendDataSetElements is ReadDataSet's sending mirror: it encodes elems
// under the transfer syntax negotiated for contextID and sends the result
// as a data PDV run.
func (a *Association) SendDataSetElements(contextID byte, elems []*godicom.Element) error {
	ctx, ok := a.acceptedContext(contextID)
	if !ok {
		return ulerr.New(ulerr.KindInvalidPresentationContextID,
			"presentation context %d was not negotiated", contextID)
	}
	ts, err := datasetdecoder.LookupTransferSyntax(ctx.TransferSyntax)
	if err != nil {
		return ulerr.Wrap(ulerr.KindUnsupportedTransferSyntax, err,
			"context %d negotiated transfer syntax %q", ctx.ID, ctx.TransferSyntax)
	}
	raw, err := datasetdecoder.EncodeDataSet(elems, ts)
	if err != nil {
		return ulerr.Wrap(ulerr.KindInvalidCommandData, err, "encoding data set for context %d", ctx.ID)
	}
	return a.SendDataSet(contextID, pdu.PDataValueTypeData, raw)
}

// SendDIMSECommand encodes cmd (Implicit VR Little Endian, per PS3.7
// 6.3.1) and sends it as a command PDV run over contextID, the sending
// mirror of ReadDIMSECommand.
func (a *Association) SendDIMSECommand(contextID byte, cmd datasetdecoder.Command) error {
	raw, err := datasetdecoder.EncodeCommand(cmd)
	if err != nil {
		return ulerr.Wrap(ulerr.KindInvalidCommandData, err, "encoding DIMSE command")
	}
	return a.SendDataSet(contextID, pdu.PDataValueTypeCommand, raw)
}

// ReadDIMSECommand reassembles the next command PDV run and decodes it via
// the datasetdecoder collaborator, returning the presentation context id
// the command arrived on so the caller can look up its negotiated transfer
// syntax for any following data set.
func (a *Association) ReadDIMSECommand() (datasetdecoder.Command, byte, error) {
	msg, err := a.ReceiveDataSet(&commandValueType)
	if err != nil {
		return nil, 0, err
	}
	if _, ok := a.acceptedContext(msg.PresentationContextID); !ok {
		return nil, 0, ulerr.New(ulerr.KindInvalidPresentationContextID,
			"command arrived on presentation context %d, which was not negotiated", msg.PresentationContextID)
	}
	cmd, err := datasetdecoder.DecodeCommand(msg.Data)
	if err != nil {
		return nil, 0, ulerr.Wrap(ulerr.KindInvalidCommandData, err, "decoding DIMSE command")
	}
	return cmd, msg.PresentationContextID, nil
}
