package pdu_test

import (
	"bytes"
	"testing"

	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
	"github.com/stretchr/testify/require"
)

func TestAssociateRQRoundTrip(t *testing.T) {
	rq := &pdu.AssociateRQContainer{
		ProtocolVersion:        1,
		CalledAETitle:          "STORESCP",
		CallingAETitle:         "STORESCU",
		ApplicationContextName: pdu.DICOMApplicationContextName,
		PresentationContexts: []pdu.PresentationContextProposed{
			{
				ID:               1,
				AbstractSyntax:   "1.2.840.10008.1.1",
				TransferSyntaxes: []string{"1.2.840.10008.1.2", "1.2.840.10008.1.2.1"},
			},
		},
		UserVariables: []pdu.UserVariableItem{
			pdu.MaxLengthItem{MaxLengthReceived: 16384},
			pdu.ImplementationClassUIDItem{UID: "1.2.3.4.5"},
			pdu.RoleSelectionItem{SOPClassUID: "1.2.840.10008.1.1", SCURole: 1, SCPRole: 0},
			pdu.UnknownUserVariableItem{Type: 0x58, Data: []byte{0x01, 0x02}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, pdu.WritePDU(&buf, rq))

	got, err := pdu.ReadPDU(&buf, 1<<20)
	require.NoError(t, err)

	decoded, ok := got.(*pdu.AssociateRQContainer)
	require.True(t, ok)
	require.Equal(t, rq.CalledAETitle, decoded.CalledAETitle)
	require.Equal(t, rq.CallingAETitle, decoded.CallingAETitle)
	require.Equal(t, rq.ApplicationContextName, decoded.ApplicationContextName)
	require.Len(t, decoded.PresentationContexts, 1)
	require.Equal(t, rq.PresentationContexts[0].AbstractSyntax, decoded.PresentationContexts[0].AbstractSyntax)
	require.Equal(t, rq.PresentationContexts[0].TransferSyntaxes, decoded.PresentationContexts[0].TransferSyntaxes)
	require.Contains(t, decoded.UserVariables, pdu.MaxLengthItem{MaxLengthReceived: 16384})
	require.Contains(t, decoded.UserVariables, pdu.RoleSelectionItem{SOPClassUID: "1.2.840.10008.1.1", SCURole: 1, SCPRole: 0})
	require.Contains(t, decoded.UserVariables, pdu.UnknownUserVariableItem{Type: 0x58, Data: []byte{0x01, 0x02}})
}

func TestAssociateACRoundTrip(t *testing.T) {
	ac := &pdu.AssociateACContainer{
		ProtocolVersion:        1,
		CalledAETitle:          "STORESCP",
		CallingAETitle:         "STORESCU",
		ApplicationContextName: pdu.DICOMApplicationContextName,
		PresentationContexts: []pdu.PresentationContextResult{
			{ID: 1, Reason: pdu.PresentationContextAcceptance, TransferSyntax: "1.2.840.10008.1.2"},
			{ID: 3, Reason: pdu.PresentationContextAbstractSyntaxNotSupported},
		},
		UserVariables: []pdu.UserVariableItem{
			pdu.MaxLengthItem{MaxLengthReceived: 16384},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, pdu.WritePDU(&buf, ac))

	got, err := pdu.ReadPDU(&buf, 1<<20)
	require.NoError(t, err)

	decoded, ok := got.(*pdu.AssociateACContainer)
	require.True(t, ok)
	require.Len(t, decoded.PresentationContexts, 2)
	require.Equal(t, pdu.PresentationContextAcceptance, decoded.PresentationContexts[0].Reason)
	require.Equal(t, "1.2.840.10008.1.2", decoded.PresentationContexts[0].TransferSyntax)
	require.Equal(t, pdu.PresentationContextAbstractSyntaxNotSupported, decoded.PresentationContexts[1].Reason)
	require.Empty(t, decoded.PresentationContexts[1].TransferSyntax)
}

func TestAssociateRJRoundTrip(t *testing.T) {
	rj := &pdu.AssociateRJContainer{
		Result: pdu.AssociationRJResultRejectedPermanent,
		Source: pdu.AssociationRJSourceServiceUser,
		Reason: byte(pdu.AssociationRJServiceUserCalledAETitleNotRecognized),
	}

	var buf bytes.Buffer
	require.NoError(t, pdu.WritePDU(&buf, rj))

	got, err := pdu.ReadPDU(&buf, 1<<20)
	require.NoError(t, err)

	decoded, ok := got.(*pdu.AssociateRJContainer)
	require.True(t, ok)
	require.Equal(t, *rj, *decoded)
}

func TestPDataRoundTrip(t *testing.T) {
	c := &pdu.PDataContainer{
		Values: []pdu.PDataValue{
			{PresentationContextID: 1, ValueType: pdu.PDataValueTypeCommand, IsLast: true, Data: []byte{0x01, 0x02}},
			{PresentationContextID: 1, ValueType: pdu.PDataValueTypeData, IsLast: false, Data: bytes.Repeat([]byte{0xAB}, 100)},
			{PresentationContextID: 1, ValueType: pdu.PDataValueTypeData, IsLast: true, Data: []byte{0xCD}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, pdu.WritePDU(&buf, c))

	got, err := pdu.ReadPDU(&buf, 1<<20)
	require.NoError(t, err)

	decoded, ok := got.(*pdu.PDataContainer)
	require.True(t, ok)
	require.Equal(t, c.Values, decoded.Values)
}

func TestReleaseAndAbortRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, pdu.WritePDU(&buf, pdu.ReleaseRQ{}))
	got, err := pdu.ReadPDU(&buf, 1<<20)
	require.NoError(t, err)
	require.Equal(t, pdu.ReleaseRQ{}, got)

	buf.Reset()
	require.NoError(t, pdu.WritePDU(&buf, pdu.ReleaseRP{}))
	got, err = pdu.ReadPDU(&buf, 1<<20)
	require.NoError(t, err)
	require.Equal(t, pdu.ReleaseRP{}, got)

	buf.Reset()
	abort := &pdu.AbortRQContainer{Source: pdu.AbortRQSourceServiceProvider, Reason: pdu.AbortRQReasonUnexpectedPDU}
	require.NoError(t, pdu.WritePDU(&buf, abort))
	got, err = pdu.ReadPDU(&buf, 1<<20)
	require.NoError(t, err)
	decodedAbort, ok := got.(*pdu.AbortRQContainer)
	require.True(t, ok)
	require.Equal(t, *abort, *decodedAbort)
}

func TestReadPDURejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{byte(pdu.TypeAssociateRQ), 0, 0xFF, 0xFF, 0xFF, 0xFF})
	_, err := pdu.ReadPDU(&buf, 8)
	require.Error(t, err)
	require.True(t, ulerr.Is(err, ulerr.KindPDUTooLarge))
}

func TestReadPDUCleanEOF(t *testing.T) {
	_, err := pdu.ReadPDU(bytes.NewReader(nil), 1<<20)
	require.Error(t, err)
	require.True(t, ulerr.Is(err, ulerr.KindNoPDUAvailable))
}

func TestWriteChunkBackfillsLengthPrefix(t *testing.T) {
	body := []byte("presentation context payload")

	var buf16 bytes.Buffer
	require.NoError(t, pdu.WriteChunkU16(&buf16, func(b *bytes.Buffer) error {
		b.Write(body)
		return nil
	}))
	out := buf16.Bytes()
	require.Equal(t, uint16(len(body)), uint16(out[0])<<8|uint16(out[1]))
	require.Equal(t, body, out[2:])

	var buf32 bytes.Buffer
	require.NoError(t, pdu.WriteChunkU32(&buf32, func(b *bytes.Buffer) error {
		b.Write(body)
		return nil
	}))
	out = buf32.Bytes()
	require.Equal(t, uint32(len(body)), uint32(out[0])<<24|uint32(out[1])<<16|uint32(out[2])<<8|uint32(out[3]))
	require.Equal(t, body, out[4:])
}

func TestReadPDUPreservesUnknownType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x99, 0, 0, 0, 0, 3})
	buf.Write([]byte{1, 2, 3})
	got, err := pdu.ReadPDU(&buf, 1<<20)
	require.NoError(t, err)
	unknown, ok := got.(pdu.Unknown)
	require.True(t, ok)
	require.Equal(t, pdu.Type(0x99), unknown.PDUType)
	require.Equal(t, []byte{1, 2, 3}, unknown.Payload)
}
