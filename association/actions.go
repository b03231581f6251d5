package association

import (
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/mjpearson/dicomul/fsm"
	"github.com/mjpearson/dicomul/negotiate"
	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
)

// This file is the single implementation of fsm.Actions. Method names keep
// the AE-n/AA-n/AR-n/DT-n numbering from PS3.8 table 9-10 so a transition
// and the method it invokes read as the same action.

// AE1TransportConnect issues the local TRANSPORT CONNECT request. The
// transport is supplied by the caller of RequestAssociation already
// connected, so there's nothing left to do but log the attempt.
func (a *Association) AE1TransportConnect() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AE-1 connecting transport", a.label)
	return nil
}

// AE2SendAssociationRQPDU sends the A-ASSOCIATE-RQ built from the options
// and proposed contexts RequestAssociation stashed beforehand.
func (a *Association) AE2SendAssociationRQPDU() error {
	rq := &pdu.AssociateRQContainer{
		ProtocolVersion:        1,
		CalledAETitle:          a.options.CalledAETitle,
		CallingAETitle:         a.options.CallingAETitle,
		ApplicationContextName: a.options.ApplicationContextName,
		PresentationContexts:   a.proposedContexts,
		UserVariables:          a.userInformation(),
	}
	dicomlog.Vprintf(1, "dicomul.association(%s): AE-2 sending A-ASSOCIATE-RQ", a.label)
	return a.writePDU(rq)
}

// AE3AssociationConfirmationAC processes the A-ASSOCIATE-AC this
// association's RequestAssociation stashed into pendingAC just before
// feeding the event, recording the accepted contexts and the peer's chosen
// max PDU size.
func (a *Association) AE3AssociationConfirmationAC() error {
	ac := a.pendingAC
	if ac == nil {
		return ulerr.New(ulerr.KindInconsistentState, "AE-3 fired with no pending A-ASSOCIATE-AC")
	}
	a.AcceptedContexts = a.AcceptedContexts[:0]
	proposedByID := make(map[byte]string, len(a.proposedContexts))
	for _, pc := range a.proposedContexts {
		proposedByID[pc.ID] = pc.AbstractSyntax
	}
	for _, result := range ac.PresentationContexts {
		if result.Reason != pdu.PresentationContextAcceptance {
			continue
		}
		a.AcceptedContexts = append(a.AcceptedContexts, negotiate.AcceptedContext{
			ID:             result.ID,
			AbstractSyntax: proposedByID[result.ID],
			TransferSyntax: result.TransferSyntax,
		})
	}
	a.peerMaxPDUSize = extractMaxLength(ac.UserVariables)
	a.pendingAC = nil
	dicomlog.Vprintf(1, "dicomul.association(%s): AE-3 association accepted, %d context(s)", a.label, len(a.AcceptedContexts))
	return nil
}

// AE4AssociateConfirmationRJ records the rejection RequestAssociation
// stashed, so RequestAssociation can report it to its caller.
func (a *Association) AE4AssociateConfirmationRJ() error {
	a.rejection = a.pendingRJ
	a.pendingRJ = nil
	dicomlog.Vprintf(1, "dicomul.association(%s): AE-4 association rejected", a.label)
	return nil
}

// AE5TransportConnectResponse acknowledges an inbound connection and arms
// the ARTIM window while awaiting the peer's A-ASSOCIATE-RQ.
func (a *Association) AE5TransportConnectResponse() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AE-5 accepted transport connection", a.label)
	a.setArtimDeadline()
	return nil
}

// AE6ExamineAssociateRQ stores the proposed RQ and decides whether to
// accept it at the protocol level. Presentation-context negotiation itself
// happens afterward, in ReceiveAssociation, once the SM has reached S03;
// AE-6 only rejects requests this module cannot speak to at
// all (an unsupported protocol version).
func (a *Association) AE6ExamineAssociateRQ(rq *pdu.AssociateRQContainer) (fsm.ExaminationResult, error) {
	a.negotiatedRQ = rq
	a.peerMaxPDUSize = extractMaxLength(rq.UserVariables)
	a.clearArtimDeadline()
	if rq.ProtocolVersion&0x0001 == 0 {
		dicomlog.Vprintf(0, "dicomul.association(%s): AE-6 rejecting unsupported protocol version 0x%04x", a.label, rq.ProtocolVersion)
		a.rejection = &pdu.AssociateRJContainer{
			Result: pdu.AssociationRJResultRejectedPermanent,
			Source: pdu.AssociationRJSourceServiceProviderACSE,
			Reason: byte(pdu.AssociationRJACSEProtocolVersionNotSupported),
		}
		if err := a.writePDU(a.rejection); err != nil {
			return fsm.Reject, err
		}
		a.setArtimDeadline()
		return fsm.Reject, nil
	}
	dicomlog.Vprintf(1, "dicomul.association(%s): AE-6 examined A-ASSOCIATE-RQ from %q, accepting", a.label, rq.CallingAETitle)
	return fsm.Accept, nil
}

// AE7SendAssociationAC sends the A-ASSOCIATE-AC ReceiveAssociation built
// after negotiating presentation contexts.
func (a *Association) AE7SendAssociationAC(ac *pdu.AssociateACContainer) error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AE-7 sending A-ASSOCIATE-AC", a.label)
	return a.writePDU(ac)
}

// AE8SendAssociationRJ sends the A-ASSOCIATE-RJ carried by an
// AAssociateResponseReject event and re-arms the ARTIM window while the
// transport close is pending. ReceiveAssociation never feeds that event;
// AE6ExamineAssociateRQ writes its own rejection.
func (a *Association) AE8SendAssociationRJ(rj *pdu.AssociateRJContainer) error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AE-8 sending A-ASSOCIATE-RJ", a.label)
	err := a.writePDU(rj)
	a.setArtimDeadline()
	return err
}

// DT1SendPData writes one P-DATA-TF PDU while established.
func (a *Association) DT1SendPData(pd *pdu.PDataContainer) error {
	return a.writePDU(pd)
}

// DT2IndicatePData stashes the received PDataContainer for ReceiveDataSet
// to consume.
func (a *Association) DT2IndicatePData(pd *pdu.PDataContainer) error {
	a.currentPData = pd
	return nil
}

// AA1SendAssociationAbort sends an A-ABORT with a service-user source, used
// when the local user requests an abort or this side detects a violation.
func (a *Association) AA1SendAssociationAbort() error {
	dicomlog.Vprintf(0, "dicomul.association(%s): AA-1 sending A-ABORT", a.label)
	a.metrics.AssociationAborted()
	err := a.writePDU(&pdu.AbortRQContainer{Source: pdu.AbortRQSourceServiceUser})
	a.setArtimDeadline()
	return err
}

// AA2CloseTransport closes the transport and disarms the ARTIM window.
func (a *Association) AA2CloseTransport() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AA-2 closing transport", a.label)
	a.clearArtimDeadline()
	return a.transport.Close()
}

// AA3IndicatePeerAborted closes the transport and records that the peer
// aborted, for the façade caller to surface as KindPeerAbortedAssociation.
func (a *Association) AA3IndicatePeerAborted() error {
	dicomlog.Vprintf(0, "dicomul.association(%s): AA-3 peer aborted the association", a.label)
	a.metrics.AssociationAborted()
	a.pendingError = ulerr.New(ulerr.KindPeerAbortedAssociation, "peer sent A-ABORT")
	return a.transport.Close()
}

// AA4IndicateAPAbort shuts the transport down in both directions and records
// the provider abort (an "AP-abort" in PS3.8's terms): the transport closed
// underneath an association that was still in progress.
func (a *Association) AA4IndicateAPAbort() error {
	dicomlog.Vprintf(0, "dicomul.association(%s): AA-4 transport closed unexpectedly", a.label)
	a.metrics.AssociationAborted()
	a.pendingError = ulerr.New(ulerr.KindPeerAbortedAssociation, "transport connection closed while the association was in progress")
	// The transport is already dead; shutdown errors here would only mask
	// the abort being surfaced.
	_ = a.transport.CloseRead()
	_ = a.transport.CloseWrite()
	return nil
}

// AA5StopArtimTimer disarms the ARTIM window after the peer's transport
// close arrives while this side was in S02.
func (a *Association) AA5StopArtimTimer() error {
	a.clearArtimDeadline()
	return nil
}

// AA6IgnorePDU drops a PDU that arrived after this side already started
// closing (S13): no state change, no response.
func (a *Association) AA6IgnorePDU() error {
	dicomlog.Vprintf(2, "dicomul.association(%s): AA-6 ignoring PDU in S13", a.label)
	return nil
}

// AA7SendAbort sends an A-ABORT in response to an invalid/unrecognized PDU
// received while already in S13.
func (a *Association) AA7SendAbort() error {
	dicomlog.Vprintf(0, "dicomul.association(%s): AA-7 sending A-ABORT", a.label)
	return a.writePDU(&pdu.AbortRQContainer{
		Source: pdu.AbortRQSourceServiceProvider,
		Reason: pdu.AbortRQReasonUnrecognizedPDU,
	})
}

// AA8UnrecognizedPDUSendAbort sends an A-ABORT with a service-provider
// source/reason after this side received a PDU not valid for its current
// state, and records the protocol violation for the caller.
func (a *Association) AA8UnrecognizedPDUSendAbort() error {
	dicomlog.Vprintf(0, "dicomul.association(%s): AA-8 unrecognized PDU for current state, aborting", a.label)
	a.pendingError = ulerr.New(ulerr.KindInvalidPDU, "peer sent a PDU not valid for the current association state")
	err := a.writePDU(&pdu.AbortRQContainer{
		Source: pdu.AbortRQSourceServiceProvider,
		Reason: pdu.AbortRQReasonUnexpectedPDU,
	})
	a.setArtimDeadline()
	return err
}

// AR1SendReleaseRQ sends an A-RELEASE-RQ to start a graceful close.
func (a *Association) AR1SendReleaseRQ() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AR-1 sending A-RELEASE-RQ", a.label)
	return a.writePDU(pdu.ReleaseRQ{})
}

// AR2IndicateRelease notes that the peer asked to release; the local user
// must answer with Release(...) to drive AR4.
func (a *Association) AR2IndicateRelease() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AR-2 peer requested release", a.label)
	return nil
}

// AR3ConfirmRelease closes the transport after a clean release handshake.
func (a *Association) AR3ConfirmRelease() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AR-3 release confirmed, closing transport", a.label)
	return a.transport.Close()
}

// AR4SendReleaseRP answers a release request and re-arms the ARTIM window
// while the transport close is pending.
func (a *Association) AR4SendReleaseRP() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AR-4 sending A-RELEASE-RP", a.label)
	err := a.writePDU(pdu.ReleaseRP{})
	a.setArtimDeadline()
	return err
}

// AR5StopArtimTimer disarms the ARTIM window once the peer's transport
// close arrives while this side was in S13.
func (a *Association) AR5StopArtimTimer() error {
	a.clearArtimDeadline()
	return nil
}

// AR6IndicatePData stashes a P-DATA PDU that arrived while this side is
// already releasing (S07); the peer may keep sending until it answers the
// release request.
func (a *Association) AR6IndicatePData(pd *pdu.PDataContainer) error {
	a.currentPData = pd
	return nil
}

// AR7SendPData sends a P-DATA PDU the caller queued via pendingSendPData
// before feeding the PDataReq event while in S08 (data continues to flow
// until the release response is given, per PS3.8).
func (a *Association) AR7SendPData() error {
	pd := a.pendingSendPData
	a.pendingSendPData = nil
	if pd == nil {
		return ulerr.New(ulerr.KindInconsistentState, "AR-7 fired with no pending P-DATA to send")
	}
	return a.writePDU(pd)
}

// AR8IndicateAssociationRelease notes a release collision; the SM itself
// has already chosen S09 (requester) or S10 (acceptor) based on role.
func (a *Association) AR8IndicateAssociationRelease() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AR-8 release collision detected", a.label)
	return nil
}

// AR9SendAssociationReleaseRP answers the peer's release request on the
// requester side of a release collision.
func (a *Association) AR9SendAssociationReleaseRP() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AR-9 sending A-RELEASE-RP (collision)", a.label)
	return a.writePDU(pdu.ReleaseRP{})
}

// AR10ConfirmRelease notes that the peer's A-RELEASE-RP arrived on the
// acceptor side of a release collision (S10 -> S12); the local side's own
// A-RELEASE-RP is still due and is sent by AR-4 from S12.
func (a *Association) AR10ConfirmRelease() error {
	dicomlog.Vprintf(1, "dicomul.association(%s): AR-10 release confirmed (collision)", a.label)
	return nil
}

func extractMaxLength(vars []pdu.UserVariableItem) uint32 {
	for _, v := range vars {
		if ml, ok := v.(pdu.MaxLengthItem); ok {
			return ml.MaxLengthReceived
		}
	}
	return 0
}

func (a *Association) userInformation() []pdu.UserVariableItem {
	items := []pdu.UserVariableItem{
		pdu.MaxLengthItem{MaxLengthReceived: a.options.maxPDUSize()},
	}
	if a.options.ImplementationClassUID != "" {
		items = append(items, pdu.ImplementationClassUIDItem{UID: a.options.ImplementationClassUID})
	}
	if a.options.ImplementationVersionName != "" {
		items = append(items, pdu.ImplementationVersionNameItem{Name: a.options.ImplementationVersionName})
	}
	return items
}
