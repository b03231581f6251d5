// Package association implements the Association façade (C4): it owns the
// byte stream, drives the fsm.StateMachine by implementing fsm.Actions, and
// exposes the acceptor and requester entry points plus the established-state
// send/receive operations built on top of the reassemble package.
package association

import (
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/mjpearson/dicomul/fsm"
	"github.com/mjpearson/dicomul/metrics"
	"github.com/mjpearson/dicomul/negotiate"
	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
)

// Association is the single implementation of fsm.Actions and the
// owner of every other piece of per-connection state: the transport, the state machine, the negotiated contexts, and
// the pending P-DATA container the reassembler consumes.
type Association struct {
	label   string
	role    fsm.Role
	sm      *fsm.StateMachine
	options Options
	metrics *metrics.Collector

	transport Transport

	// proposedContexts is set by RequestAssociation before AE-2 fires, so
	// AE2SendAssociationRQPDU has something to serialize.
	proposedContexts []pdu.PresentationContextProposed

	// negotiatedRQ is the peer's A-ASSOCIATE-RQ, stashed by AE-6 (acceptor
	// role) for ReceiveAssociation to negotiate against after the SM
	// reaches S03.
	negotiatedRQ *pdu.AssociateRQContainer

	// pendingAC/pendingRJ are stashed by the caller immediately before
	// feeding the corresponding *PduRcv event, since AE-3/AE-4's method
	// signatures (unlike AE-6/AE-7/AE-8) carry no PDU parameter.
	pendingAC *pdu.AssociateACContainer
	pendingRJ *pdu.AssociateRJContainer
	// pendingSendPData is stashed by the caller before feeding a PDataReq
	// event while in S08, for AR7SendPData to pick up (its signature,
	// like AE-3/AE-4's, carries no parameter).
	pendingSendPData *pdu.PDataContainer

	// AcceptedContexts is written exactly once, at acceptance, and never
	// mutated afterward.
	AcceptedContexts []negotiate.AcceptedContext
	// peerMaxPDUSize is the maximum PDU size the peer advertised; it
	// bounds this association's outgoing P-DATA fragmentation.
	peerMaxPDUSize uint32

	// currentPData is written by DT2IndicatePData/AR6IndicatePData and
	// consumed by ReceiveDataSet; nil between consumptions.
	currentPData *pdu.PDataContainer

	// pendingError surfaces a semantic or protocol condition the SM
	// detected inside an action (peer abort, unexpected disconnect,
	// unrecognized PDU) to whichever façade method is waiting on the SM's
	// next transition.
	pendingError error

	// rejection is set by AE4AssociateConfirmationRJ so RequestAssociation
	// can report why the peer rejected the proposal.
	rejection *pdu.AssociateRJContainer

	artimArmed bool
}

// newAssociation builds the shared skeleton for both ReceiveAssociation and
// RequestAssociation. The state machine starts in State01 per fsm.New.
func newAssociation(transport Transport, role fsm.Role, opts Options, collector *metrics.Collector) *Association {
	label := uuid.New().String()[:8]
	a := &Association{
		label:     label,
		role:      role,
		sm:        fsm.New(role),
		options:   opts,
		metrics:   collector,
		transport: transport,
	}
	dicomlog.Vprintf(1, "dicomul.association(%s): created, role=%v", a.label, role)
	return a
}

// Label returns the short identifier used in every log line this
// association emits; it is never sent on the wire.
func (a *Association) Label() string { return a.label }

// State reports the state machine's current state, mostly for tests and
// diagnostics.
func (a *Association) State() fsm.State { return a.sm.State() }

// setArtimDeadline arms the transport's read deadline for the ARTIM window
// (PS3.8 9.1.5), implemented as a socket read deadline rather than a
// scheduled timer.
func (a *Association) setArtimDeadline() {
	a.artimArmed = true
	_ = a.transport.SetReadDeadline(time.Now().Add(a.options.artimTimeout()))
}

// clearArtimDeadline disarms the read deadline; called on every transition
// out of S02/S13.
func (a *Association) clearArtimDeadline() {
	if !a.artimArmed {
		return
	}
	a.artimArmed = false
	_ = a.transport.SetReadDeadline(time.Time{})
}

func (a *Association) readPDU() (pdu.PDU, error) {
	cr := &countingReader{r: a.transport}
	p, err := pdu.ReadPDU(cr, a.options.maxPDUSize())
	if cr.n > 0 {
		a.metrics.PDUReceived(kindOf(p, err), int(cr.n))
	}
	return p, err
}

func kindOf(p pdu.PDU, err error) pdu.Type {
	if err != nil || p == nil {
		return pdu.Type(0)
	}
	return p.Kind()
}

func (a *Association) writePDU(p pdu.PDU) error {
	cw := &countingWriter{w: a.transport}
	err := pdu.WritePDU(cw, p)
	dicomlog.Vprintf(2, "dicomul.association(%s): wrote %v (err=%v)", a.label, p.Kind(), err)
	if err == nil {
		a.metrics.PDUSent(p.Kind(), int(cw.n))
	}
	return err
}

// eventForPDU maps a decoded top-level PDU to the fsm.Event it drives,
// stashing into the pending* fields the handful of actions that need a PDU
// their method signature doesn't carry directly.
func (a *Association) eventForPDU(p pdu.PDU) fsm.Event {
	switch v := p.(type) {
	case *pdu.AssociateRQContainer:
		return fsm.AAssociateRqPduRcv(v)
	case *pdu.AssociateACContainer:
		a.pendingAC = v
		return fsm.AAssociateAcPduRcv()
	case *pdu.AssociateRJContainer:
		a.pendingRJ = v
		return fsm.AAssociateRjPduRcv()
	case *pdu.PDataContainer:
		return fsm.PDataTfPduRcv(v)
	case pdu.ReleaseRQ:
		return fsm.AReleaseRQPduRcv()
	case pdu.ReleaseRP:
		return fsm.AReleaseRpPduRcv()
	case *pdu.AbortRQContainer:
		return fsm.AAbortPduRcv()
	default:
		return fsm.InvalidPdu()
	}
}

// pumpOnce reads exactly one PDU (or transport condition) and turns it into
// the fsm.Event that PDU drives, translating a clean EOF into
// TransConnClosed and a read timeout into ArtimTimerExpired; any other
// read failure propagates.
func (a *Association) pumpOnce() (fsm.Event, error) {
	p, err := a.readPDU()
	if err != nil {
		if ulerr.Is(err, ulerr.KindNoPDUAvailable) {
			return fsm.TransConnClosed(), nil
		}
		if isTimeout(err) {
			return fsm.ArtimTimerExpired(), nil
		}
		return fsm.InvalidPdu(), err
	}
	return a.eventForPDU(p), nil
}

type timeouter interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	for err != nil {
		if t, ok := err.(timeouter); ok && t.Timeout() {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// driveOneEvent feeds event through the state machine and folds the
// action's error in with any error already carried by event's originating
// read (e.g. a PDU that failed to parse). The transition is
// considered to have happened regardless of whether the action failed; the
// caller treats any returned error as terminal for this association.
func (a *Association) driveOneEvent(event fsm.Event, readErr error) error {
	smErr := a.sm.ProcessEvent(event, a)
	if readErr != nil {
		return readErr
	}
	return smErr
}

// reassembler is reset to a fresh reassemble.Assembler by each
// ReceiveDataSet call; currentPData bridges DT2/AR6's stash to the loop
// that consumes it.
func (a *Association) takeCurrentPData() *pdu.PDataContainer {
	pd := a.currentPData
	a.currentPData = nil
	return pd
}
