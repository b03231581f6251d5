package fsm_test

import (
	"testing"

	"github.com/mjpearson/dicomul/fsm"
	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
	"github.com/stretchr/testify/require"
)

// recordingActions implements fsm.Actions, recording every method called,
// in order, so tests can assert on it without a full association.
type recordingActions struct {
	calls      []string
	examineErr error
	examineTo  fsm.ExaminationResult
}

func (a *recordingActions) record(name string) error {
	a.calls = append(a.calls, name)
	return nil
}

func (a *recordingActions) AE1TransportConnect() error          { return a.record("AE1") }
func (a *recordingActions) AE2SendAssociationRQPDU() error      { return a.record("AE2") }
func (a *recordingActions) AE3AssociationConfirmationAC() error { return a.record("AE3") }
func (a *recordingActions) AE4AssociateConfirmationRJ() error   { return a.record("AE4") }
func (a *recordingActions) AE5TransportConnectResponse() error  { return a.record("AE5") }
func (a *recordingActions) AE6ExamineAssociateRQ(*pdu.AssociateRQContainer) (fsm.ExaminationResult, error) {
	a.calls = append(a.calls, "AE6")
	return a.examineTo, a.examineErr
}
func (a *recordingActions) AE7SendAssociationAC(*pdu.AssociateACContainer) error { return a.record("AE7") }
func (a *recordingActions) AE8SendAssociationRJ(*pdu.AssociateRJContainer) error { return a.record("AE8") }
func (a *recordingActions) DT1SendPData(*pdu.PDataContainer) error               { return a.record("DT1") }
func (a *recordingActions) DT2IndicatePData(*pdu.PDataContainer) error           { return a.record("DT2") }
func (a *recordingActions) AA1SendAssociationAbort() error                       { return a.record("AA1") }
func (a *recordingActions) AA2CloseTransport() error                             { return a.record("AA2") }
func (a *recordingActions) AA3IndicatePeerAborted() error                        { return a.record("AA3") }
func (a *recordingActions) AA4IndicateAPAbort() error                            { return a.record("AA4") }
func (a *recordingActions) AA5StopArtimTimer() error                             { return a.record("AA5") }
func (a *recordingActions) AA6IgnorePDU() error                                  { return a.record("AA6") }
func (a *recordingActions) AA7SendAbort() error                                  { return a.record("AA7") }
func (a *recordingActions) AA8UnrecognizedPDUSendAbort() error                   { return a.record("AA8") }
func (a *recordingActions) AR1SendReleaseRQ() error                              { return a.record("AR1") }
func (a *recordingActions) AR2IndicateRelease() error                            { return a.record("AR2") }
func (a *recordingActions) AR3ConfirmRelease() error                             { return a.record("AR3") }
func (a *recordingActions) AR4SendReleaseRP() error                              { return a.record("AR4") }
func (a *recordingActions) AR5StopArtimTimer() error                             { return a.record("AR5") }
func (a *recordingActions) AR6IndicatePData(*pdu.PDataContainer) error           { return a.record("AR6") }
func (a *recordingActions) AR7SendPData() error                                  { return a.record("AR7") }
func (a *recordingActions) AR8IndicateAssociationRelease() error                 { return a.record("AR8") }
func (a *recordingActions) AR9SendAssociationReleaseRP() error                   { return a.record("AR9") }
func (a *recordingActions) AR10ConfirmRelease() error                            { return a.record("AR10") }

func TestNewStateMachineStartsIdle(t *testing.T) {
	m := fsm.New(fsm.RoleAcceptor)
	require.Equal(t, fsm.State01, m.State())
}

func TestAcceptorHappyPath(t *testing.T) {
	m := fsm.New(fsm.RoleAcceptor)
	actions := &recordingActions{examineTo: fsm.Accept}

	require.NoError(t, m.ProcessEvent(fsm.TransConnIndication(), actions))
	require.Equal(t, fsm.State02, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AAssociateRqPduRcv(&pdu.AssociateRQContainer{}), actions))
	require.Equal(t, fsm.State03, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AAssociateResponseAccept(&pdu.AssociateACContainer{}), actions))
	require.Equal(t, fsm.State06, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseRQPduRcv(), actions))
	require.Equal(t, fsm.State08, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseResp(), actions))
	require.Equal(t, fsm.State13, m.State())

	require.NoError(t, m.ProcessEvent(fsm.TransConnClosed(), actions))
	require.Equal(t, fsm.State01, m.State())

	require.Equal(t, []string{"AE5", "AE6", "AE7", "AR2", "AR4", "AR5"}, actions.calls)
}

func TestRequesterHappyPath(t *testing.T) {
	m := fsm.New(fsm.RoleRequester)
	actions := &recordingActions{}

	require.NoError(t, m.ProcessEvent(fsm.AAssociateReqLocalUser(), actions))
	require.Equal(t, fsm.State04, m.State())

	require.NoError(t, m.ProcessEvent(fsm.TransConnConfirmLocalUser(), actions))
	require.Equal(t, fsm.State05, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AAssociateAcPduRcv(), actions))
	require.Equal(t, fsm.State06, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseReq(), actions))
	require.Equal(t, fsm.State07, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseRpPduRcv(), actions))
	require.Equal(t, fsm.State01, m.State())

	require.Equal(t, []string{"AE1", "AE2", "AE3", "AR1", "AR3"}, actions.calls)
}

func TestReleaseCollisionRequesterSide(t *testing.T) {
	m := fsm.New(fsm.RoleRequester)
	actions := &recordingActions{}

	// Fast-forward straight into State07 by manipulating via events already
	// exercised above, then simulate the peer racing its own release-RQ.
	require.NoError(t, m.ProcessEvent(fsm.AAssociateReqLocalUser(), actions))
	require.NoError(t, m.ProcessEvent(fsm.TransConnConfirmLocalUser(), actions))
	require.NoError(t, m.ProcessEvent(fsm.AAssociateAcPduRcv(), actions))
	require.NoError(t, m.ProcessEvent(fsm.AReleaseReq(), actions))
	require.Equal(t, fsm.State07, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseRQPduRcv(), actions))
	require.Equal(t, fsm.State09, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseResp(), actions))
	require.Equal(t, fsm.State11, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseRpPduRcv(), actions))
	require.Equal(t, fsm.State01, m.State())
}

func TestReleaseCollisionAcceptorSide(t *testing.T) {
	m := fsm.New(fsm.RoleAcceptor)
	actions := &recordingActions{examineTo: fsm.Accept}

	require.NoError(t, m.ProcessEvent(fsm.TransConnIndication(), actions))
	require.NoError(t, m.ProcessEvent(fsm.AAssociateRqPduRcv(&pdu.AssociateRQContainer{}), actions))
	require.NoError(t, m.ProcessEvent(fsm.AAssociateResponseAccept(&pdu.AssociateACContainer{}), actions))
	require.NoError(t, m.ProcessEvent(fsm.AReleaseReq(), actions))
	require.Equal(t, fsm.State07, m.State())

	// Same collision event as the requester-side test, but the acceptor
	// role forks to State10 and answers via AR-10/AR-4 instead.
	require.NoError(t, m.ProcessEvent(fsm.AReleaseRQPduRcv(), actions))
	require.Equal(t, fsm.State10, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseRpPduRcv(), actions))
	require.Equal(t, fsm.State12, m.State())

	require.NoError(t, m.ProcessEvent(fsm.AReleaseResp(), actions))
	require.Equal(t, fsm.State13, m.State())

	require.NoError(t, m.ProcessEvent(fsm.TransConnClosed(), actions))
	require.Equal(t, fsm.State01, m.State())
}

func TestState02AbortsOnUnexpectedPDU(t *testing.T) {
	events := []fsm.Event{
		fsm.AAssociateAcPduRcv(),
		fsm.AAssociateRjPduRcv(),
		fsm.PDataTfPduRcv(&pdu.PDataContainer{}),
		fsm.AReleaseRQPduRcv(),
		fsm.AReleaseRpPduRcv(),
	}
	for _, ev := range events {
		m := fsm.New(fsm.RoleAcceptor)
		actions := &recordingActions{}
		require.NoError(t, m.ProcessEvent(fsm.TransConnIndication(), actions))

		require.NoError(t, m.ProcessEvent(ev, actions))
		require.Equal(t, fsm.State13, m.State(), "event %v", ev.Kind)
		require.Equal(t, "AA1", actions.calls[len(actions.calls)-1], "event %v", ev.Kind)
	}
}

func TestInvalidEventForStateReturnsTypedError(t *testing.T) {
	m := fsm.New(fsm.RoleAcceptor)
	actions := &recordingActions{}

	err := m.ProcessEvent(fsm.AReleaseReq(), actions)
	require.Error(t, err)
	require.True(t, ulerr.Is(err, ulerr.KindInvalidEventForState))
	require.Equal(t, fsm.State01, m.State())
}

func TestRejectedAssociateRqMovesToState13(t *testing.T) {
	m := fsm.New(fsm.RoleAcceptor)
	actions := &recordingActions{examineTo: fsm.Reject}

	require.NoError(t, m.ProcessEvent(fsm.TransConnIndication(), actions))
	require.NoError(t, m.ProcessEvent(fsm.AAssociateRqPduRcv(&pdu.AssociateRQContainer{}), actions))
	require.Equal(t, fsm.State13, m.State())
}

func TestArtimExpiredWhileAwaitingAssociateRqClosesTransport(t *testing.T) {
	m := fsm.New(fsm.RoleAcceptor)
	actions := &recordingActions{}

	require.NoError(t, m.ProcessEvent(fsm.TransConnIndication(), actions))
	require.Equal(t, fsm.State02, m.State())

	require.NoError(t, m.ProcessEvent(fsm.ArtimTimerExpired(), actions))
	require.Equal(t, fsm.State01, m.State())
	require.Equal(t, "AA2", actions.calls[len(actions.calls)-1])
}

func TestTransportClosedWhileEstablishedIndicatesAPAbort(t *testing.T) {
	m := fsm.New(fsm.RoleAcceptor)
	actions := &recordingActions{examineTo: fsm.Accept}

	require.NoError(t, m.ProcessEvent(fsm.TransConnIndication(), actions))
	require.NoError(t, m.ProcessEvent(fsm.AAssociateRqPduRcv(&pdu.AssociateRQContainer{}), actions))
	require.NoError(t, m.ProcessEvent(fsm.AAssociateResponseAccept(&pdu.AssociateACContainer{}), actions))
	require.Equal(t, fsm.State06, m.State())

	require.NoError(t, m.ProcessEvent(fsm.TransConnClosed(), actions))
	require.Equal(t, fsm.State01, m.State())
	require.Equal(t, "AA4", actions.calls[len(actions.calls)-1])
}

func TestPeerAbortFromEstablishedReturnsToIdle(t *testing.T) {
	m := fsm.New(fsm.RoleAcceptor)
	actions := &recordingActions{examineTo: fsm.Accept}
	require.NoError(t, m.ProcessEvent(fsm.TransConnIndication(), actions))
	require.NoError(t, m.ProcessEvent(fsm.AAssociateRqPduRcv(&pdu.AssociateRQContainer{}), actions))
	require.NoError(t, m.ProcessEvent(fsm.AAssociateResponseAccept(&pdu.AssociateACContainer{}), actions))

	require.NoError(t, m.ProcessEvent(fsm.AAbortPduRcv(), actions))
	require.Equal(t, fsm.State01, m.State())
	require.Contains(t, actions.calls, "AA3")
}
