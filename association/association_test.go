package association_test

import (
	"net"
	"testing"
	"time"

	"github.com/mjpearson/dicomul/association"
	"github.com/mjpearson/dicomul/datasetdecoder"
	"github.com/mjpearson/dicomul/fsm"
	"github.com/mjpearson/dicomul/negotiate"
	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const verificationSOPClass = "1.2.840.10008.1.1"
const implicitVRLittleEndian = "1.2.840.10008.1.2"

func runPair(t *testing.T, acceptorFn, requesterFn func()) {
	t.Helper()
	done := make(chan struct{}, 2)
	run := func(fn func()) {
		defer func() { done <- struct{}{} }()
		fn()
	}
	go run(acceptorFn)
	go run(requesterFn)
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for both sides of the association to finish")
		}
	}
}

func newPair(t *testing.T) (*association.Association, *association.Association) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	supported := []negotiate.SupportedContext{
		{AbstractSyntax: verificationSOPClass, TransferSyntaxes: []string{implicitVRLittleEndian}},
	}
	acceptor := association.NewAcceptor(association.WrapConn(serverConn), association.Options{
		CalledAETitle:     "TESTSCP",
		CallingAETitle:    "TESTSCU",
		SupportedContexts: supported,
	}, nil)
	requester := association.NewRequester(association.WrapConn(clientConn), association.Options{
		CalledAETitle:  "TESTSCP",
		CallingAETitle: "TESTSCU",
	}, nil)
	return acceptor, requester
}

func proposeVerification() []pdu.PresentationContextProposed {
	return []pdu.PresentationContextProposed{
		{ID: 1, AbstractSyntax: verificationSOPClass, TransferSyntaxes: []string{implicitVRLittleEndian}},
	}
}

// TestEstablishEchoRelease runs a full C-ECHO exchange end to end: the
// requester proposes the Verification context, the acceptor negotiates and
// accepts it, a C-ECHO-RQ/RSP pair crosses in both directions, and the
// requester then releases gracefully while the acceptor answers the
// peer-initiated release.
func TestEstablishEchoRelease(t *testing.T) {
	acceptor, requester := newPair(t)

	var acceptErr, requestErr error
	runPair(t,
		func() { acceptErr = acceptor.ReceiveAssociation() },
		func() { requestErr = requester.RequestAssociation(proposeVerification()) },
	)
	require.NoError(t, acceptErr)
	require.NoError(t, requestErr)
	assert.Equal(t, fsm.State06, acceptor.State())
	assert.Equal(t, fsm.State06, requester.State())
	require.Len(t, acceptor.AcceptedContexts, 1)
	assert.Equal(t, verificationSOPClass, acceptor.AcceptedContexts[0].AbstractSyntax)

	var echoErr, readErr error
	var gotRsp *datasetdecoder.EchoRsp
	runPair(t,
		func() {
			cmd, ctxID, err := acceptor.ReadDIMSECommand()
			if err != nil {
				readErr = err
				return
			}
			rq, ok := cmd.(*datasetdecoder.EchoRq)
			if !ok {
				readErr = assert.AnError
				return
			}
			rsp := datasetdecoder.NewEchoResponse(rq, datasetdecoder.Success)
			readErr = acceptor.SendDIMSECommand(ctxID, rsp)
		},
		func() {
			rq := &datasetdecoder.EchoRq{
				ID:                  1,
				AffectedSOPClassUID: verificationSOPClass,
				CommandDataSetType:  datasetdecoder.CommandDataSetTypeNull,
			}
			if echoErr = requester.SendDIMSECommand(1, rq); echoErr != nil {
				return
			}
			cmd, _, err := requester.ReadDIMSECommand()
			if err != nil {
				echoErr = err
				return
			}
			var ok bool
			gotRsp, ok = cmd.(*datasetdecoder.EchoRsp)
			if !ok {
				echoErr = assert.AnError
			}
		},
	)
	require.NoError(t, readErr)
	require.NoError(t, echoErr)
	require.NotNil(t, gotRsp)
	assert.Equal(t, datasetdecoder.StatusSuccess, gotRsp.Status.Code)
	assert.Equal(t, uint16(1), gotRsp.MessageIDBeingRespondedTo)

	var releaseErr, respondErr error
	runPair(t,
		func() {
			_, _, err := acceptor.ReadDIMSECommand()
			if !ulerr.Is(err, ulerr.KindPeerRequestedRelease) {
				respondErr = err
				return
			}
			respondErr = acceptor.RespondToRelease()
		},
		func() { releaseErr = requester.Release() },
	)
	require.NoError(t, releaseErr)
	require.NoError(t, respondErr)
	assert.Equal(t, fsm.State01, acceptor.State())
	assert.Equal(t, fsm.State01, requester.State())
}

// TestReceiveAssociationAcceptsZeroMatchingContexts exercises the open
// question from negotiate's design: a requester proposing an abstract syntax
// the acceptor doesn't support still gets an A-ASSOCIATE-AC, just with no
// accepted contexts, rather than being rejected outright.
func TestReceiveAssociationAcceptsZeroMatchingContexts(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	acceptor := association.NewAcceptor(association.WrapConn(serverConn), association.Options{
		SupportedContexts: []negotiate.SupportedContext{
			{AbstractSyntax: "1.2.840.10008.5.1.4.1.1.7", TransferSyntaxes: []string{implicitVRLittleEndian}},
		},
	}, nil)
	requester := association.NewRequester(association.WrapConn(clientConn), association.Options{}, nil)

	var acceptErr, requestErr error
	runPair(t,
		func() { acceptErr = acceptor.ReceiveAssociation() },
		func() {
			requestErr = requester.RequestAssociation([]pdu.PresentationContextProposed{
				{ID: 1, AbstractSyntax: verificationSOPClass, TransferSyntaxes: []string{implicitVRLittleEndian}},
			})
		},
	)
	require.NoError(t, acceptErr)
	require.NoError(t, requestErr)
	assert.Empty(t, acceptor.AcceptedContexts)
	assert.Empty(t, requester.AcceptedContexts)
	assert.Equal(t, fsm.State06, requester.State())
}

// TestAbortAssociationClosesEstablished exercises the abort path: the
// requester aborts mid-association and the acceptor, blocked reading the
// next command, observes a peer-aborted error.
func TestAbortAssociationClosesEstablished(t *testing.T) {
	acceptor, requester := newPair(t)

	var acceptErr, requestErr error
	runPair(t,
		func() { acceptErr = acceptor.ReceiveAssociation() },
		func() { requestErr = requester.RequestAssociation(proposeVerification()) },
	)
	require.NoError(t, acceptErr)
	require.NoError(t, requestErr)

	var abortErr, readErr error
	runPair(t,
		func() {
			_, _, readErr = acceptor.ReadDIMSECommand()
		},
		func() {
			abortErr = requester.AbortAssociation()
		},
	)
	require.NoError(t, abortErr)
	assert.Equal(t, fsm.State13, requester.State())
	require.Error(t, readErr)
	assert.True(t, ulerr.Is(readErr, ulerr.KindPeerAbortedAssociation))
}

// TestPeerAbortDuringReleaseSurfacesError covers the abort path out of the
// release drain: the requester has already sent A-RELEASE-RQ (S07) when the
// peer answers with A-ABORT instead of A-RELEASE-RP. Release must report
// the peer abort, not a clean release, even though the state machine lands
// back in S01 either way.
func TestPeerAbortDuringReleaseSurfacesError(t *testing.T) {
	acceptor, requester := newPair(t)

	var acceptErr, requestErr error
	runPair(t,
		func() { acceptErr = acceptor.ReceiveAssociation() },
		func() { requestErr = requester.RequestAssociation(proposeVerification()) },
	)
	require.NoError(t, acceptErr)
	require.NoError(t, requestErr)

	var releaseErr, abortErr error
	runPair(t,
		func() {
			_, _, err := acceptor.ReadDIMSECommand()
			if !ulerr.Is(err, ulerr.KindPeerRequestedRelease) {
				abortErr = err
				return
			}
			abortErr = acceptor.AbortAssociation()
		},
		func() { releaseErr = requester.Release() },
	)
	require.NoError(t, abortErr)
	require.Error(t, releaseErr)
	assert.True(t, ulerr.Is(releaseErr, ulerr.KindPeerAbortedAssociation))
	assert.Equal(t, fsm.State01, requester.State())
}
