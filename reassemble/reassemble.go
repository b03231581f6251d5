// Package reassemble implements P-DATA reassembly: it gathers
// PDVs spread across one or more P-DATA-TF PDUs into a single complete
// command or data-set byte payload, enforcing that every PDV in the run
// shares one presentation context and one value type and that exactly one
// PDV - the last one received - carries the is_last bit.
package reassemble

import (
	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
)

// Message is one fully reassembled application message: the concatenated
// PDV payloads plus the presentation context and value type they all agreed
// on.
type Message struct {
	PresentationContextID byte
	ValueType             pdu.PDataValueType
	Data                  []byte
}

// Assembler accumulates PDVs across however many P-DATA-TF PDUs a single
// application message spans. A zero-value Assembler is ready to use; Feed
// it one PDataContainer at a time (in wire-arrival order) until it reports
// the message is complete.
type Assembler struct {
	started   bool
	contextID byte
	valueType pdu.PDataValueType
	data      []byte
	done      bool
}

// ExpectedType, if set, is checked against every PDV's ValueType; a mismatch
// is reported as KindUnexpectedPdvType rather than silently accepted.
type ExpectedType struct {
	Type pdu.PDataValueType
}

// Feed folds one P-DATA-TF PDU's PDVs into the in-progress message. It
// returns the completed Message once a PDV with IsLast=true has been
// consumed; until then it returns (nil, nil). Any violation of the
// reassembly invariants - mixed context/value-type, a PDV arriving after
// IsLast, or a PDV whose type doesn't match want - is reported as an
// *ulerr.Error and leaves the Assembler unusable (construct a new one).
func (a *Assembler) Feed(pd *pdu.PDataContainer, want *ExpectedType) (*Message, error) {
	if a.done {
		return nil, ulerr.New(ulerr.KindInvalidPData, "PDV received after message already completed")
	}
	for i, v := range pd.Values {
		if !a.started {
			a.started = true
			a.contextID = v.PresentationContextID
			a.valueType = v.ValueType
		} else if v.PresentationContextID != a.contextID {
			return nil, ulerr.New(ulerr.KindInvalidPData,
				"PDV presentation context %d does not match message's context %d", v.PresentationContextID, a.contextID)
		} else if v.ValueType != a.valueType {
			return nil, ulerr.New(ulerr.KindInvalidPData,
				"PDV value type %v does not match message's value type %v", v.ValueType, a.valueType)
		}
		if want != nil && v.ValueType != want.Type {
			return nil, ulerr.New(ulerr.KindUnexpectedPdvType,
				"expected PDV type %v, got %v", want.Type, v.ValueType)
		}
		a.data = append(a.data, v.Data...)
		if v.IsLast {
			if i != len(pd.Values)-1 {
				return nil, ulerr.New(ulerr.KindInvalidPData, "PDV received after is_last in the same P-DATA-TF PDU")
			}
			a.done = true
			return &Message{
				PresentationContextID: a.contextID,
				ValueType:             a.valueType,
				Data:                  a.data,
			}, nil
		}
	}
	return nil, nil
}

// IncompleteOnClose reports the error to surface if the stream closes (or
// the association otherwise gives up) before IsLast was ever seen.
func (a *Assembler) IncompleteOnClose() error {
	if a.done || !a.started {
		return nil
	}
	return ulerr.New(ulerr.KindInvalidPData, "stream ended before a PDV with is_last=true was received")
}

// SplitPDVs is the symmetric send-side operation: it splits a
// command or data-set payload into PDVs no larger than maxPDVPayload bytes
// each, marking only the final PDV IsLast, ready to be packed into however
// many P-DATA-TF PDUs the caller chooses (typically one PDV per PDU, but
// nothing requires that split here).
func SplitPDVs(contextID byte, valueType pdu.PDataValueType, data []byte, maxPDVPayload int) []pdu.PDataValue {
	if maxPDVPayload <= 0 {
		maxPDVPayload = 1
	}
	if len(data) == 0 {
		return []pdu.PDataValue{{
			PresentationContextID: contextID,
			ValueType:             valueType,
			IsLast:                true,
			Data:                  nil,
		}}
	}
	var values []pdu.PDataValue
	for len(data) > 0 {
		n := len(data)
		if n > maxPDVPayload {
			n = maxPDVPayload
		}
		values = append(values, pdu.PDataValue{
			PresentationContextID: contextID,
			ValueType:             valueType,
			IsLast:                false,
			Data:                  data[:n],
		})
		data = data[n:]
	}
	values[len(values)-1].IsLast = true
	return values
}
