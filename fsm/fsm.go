// Package fsm implements the Upper Layer association state machine (PS3.8
// section 9) as a pure function: (state, event, role) -> (action, next
// state). It performs no I/O itself; every side effect - sending a PDU,
// opening a socket, telling the local user something happened - is made by
// calling a method on the caller-supplied Actions implementation.
package fsm

import (
	"fmt"

	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
)

// State is one of the thirteen states PS3.8 table 9-10 defines.
type State int

const (
	// State01 is idle: no association exists.
	State01 State = iota + 1
	// State02: transport connection open, awaiting A-ASSOCIATE-RQ.
	State02
	// State03: awaiting the local user's A-ASSOCIATE response primitive.
	State03
	// State04: awaiting transport connection opening to complete.
	State04
	// State05: awaiting A-ASSOCIATE-AC or -RJ.
	State05
	// State06: association established, ready for data transfer.
	State06
	// State07: awaiting A-RELEASE-RP.
	State07
	// State08: awaiting the local user's A-RELEASE response primitive.
	State08
	// State09: release collision, requester side, awaiting local response.
	State09
	// State10: release collision, acceptor side, awaiting A-RELEASE-RP.
	State10
	// State11: release collision, requester side, awaiting A-RELEASE-RP.
	State11
	// State12: release collision, acceptor side, awaiting local response.
	State12
	// State13: awaiting transport connection close.
	State13
)

func (s State) String() string {
	if s < State01 || s > State13 {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return fmt.Sprintf("State%02d", int(s))
}

// Role is which end of the association this state machine instance plays;
// it only matters for the release-collision transitions (AR-8's fork).
type Role int

const (
	RoleRequester Role = iota
	RoleAcceptor
)

// ExaminationResult is AE-6's verdict on an incoming A-ASSOCIATE-RQ.
type ExaminationResult int

const (
	Accept ExaminationResult = iota
	Reject
)

// EventKind names one of the nineteen events PS3.8 table 9-10 drives
// transitions on.
type EventKind int

const (
	EvAAssociateReqLocalUser EventKind = iota
	EvTransConnConfirmLocalUser
	EvAAssociateAcPduRcv
	EvAAssociateRjPduRcv
	EvTransConnIndication
	EvAAssociateRqPduRcv
	EvAAssociateResponseAccept
	EvAAssociateResponseReject
	EvPDataReq
	EvPDataTfPduRcv
	EvAReleaseReq
	EvAReleaseRQPduRcv
	EvAReleaseRpPduRcv
	EvAReleaseResp
	EvAAbortReq
	EvAAbortPduRcv
	EvTransConnClosed
	EvArtimTimerExpired
	EvInvalidPdu
)

func (k EventKind) String() string {
	names := [...]string{
		"AAssociateReqLocalUser", "TransConnConfirmLocalUser", "AAssociateAcPduRcv",
		"AAssociateRjPduRcv", "TransConnIndication", "AAssociateRqPduRcv",
		"AAssociateResponseAccept", "AAssociateResponseReject", "PDataReq",
		"PDataTfPduRcv", "AReleaseReq", "AReleaseRQPduRcv", "AReleaseRpPduRcv",
		"AReleaseResp", "AAbortReq", "AAbortPduRcv", "TransConnClosed",
		"ArtimTimerExpired", "InvalidPdu",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return names[k]
}

// Event is the tagged union processed by ProcessEvent. Events that carry a
// PDU on the wire carry it here too, via whichever field matches Kind; the
// others are left nil/zero.
type Event struct {
	Kind        EventKind
	AssociateRQ *pdu.AssociateRQContainer
	AssociateAC *pdu.AssociateACContainer
	AssociateRJ *pdu.AssociateRJContainer
	PData       *pdu.PDataContainer
}

func AAssociateReqLocalUser() Event    { return Event{Kind: EvAAssociateReqLocalUser} }
func TransConnConfirmLocalUser() Event { return Event{Kind: EvTransConnConfirmLocalUser} }
func AAssociateAcPduRcv() Event        { return Event{Kind: EvAAssociateAcPduRcv} }
func AAssociateRjPduRcv() Event        { return Event{Kind: EvAAssociateRjPduRcv} }
func TransConnIndication() Event       { return Event{Kind: EvTransConnIndication} }
func AReleaseReq() Event               { return Event{Kind: EvAReleaseReq} }
func AReleaseRQPduRcv() Event          { return Event{Kind: EvAReleaseRQPduRcv} }
func AReleaseRpPduRcv() Event          { return Event{Kind: EvAReleaseRpPduRcv} }
func AReleaseResp() Event              { return Event{Kind: EvAReleaseResp} }
func AAbortReq() Event                 { return Event{Kind: EvAAbortReq} }
func AAbortPduRcv() Event              { return Event{Kind: EvAAbortPduRcv} }
func TransConnClosed() Event           { return Event{Kind: EvTransConnClosed} }
func ArtimTimerExpired() Event         { return Event{Kind: EvArtimTimerExpired} }
func InvalidPdu() Event                { return Event{Kind: EvInvalidPdu} }

func AAssociateRqPduRcv(rq *pdu.AssociateRQContainer) Event {
	return Event{Kind: EvAAssociateRqPduRcv, AssociateRQ: rq}
}
func AAssociateResponseAccept(ac *pdu.AssociateACContainer) Event {
	return Event{Kind: EvAAssociateResponseAccept, AssociateAC: ac}
}
func AAssociateResponseReject(rj *pdu.AssociateRJContainer) Event {
	return Event{Kind: EvAAssociateResponseReject, AssociateRJ: rj}
}
func PDataReq(pd *pdu.PDataContainer) Event {
	return Event{Kind: EvPDataReq, PData: pd}
}
func PDataTfPduRcv(pd *pdu.PDataContainer) Event {
	return Event{Kind: EvPDataTfPduRcv, PData: pd}
}

// Actions is implemented exactly once, by Association, and injected into
// ProcessEvent so the state machine itself never touches a socket. Method
// names keep the AE-n/AA-n/AR-n/DT-n action numbering from PS3.8 table 9-10
// so a transition in ProcessEvent and the method it calls read as the same
// action.
type Actions interface {
	AE1TransportConnect() error
	AE2SendAssociationRQPDU() error
	AE3AssociationConfirmationAC() error
	AE4AssociateConfirmationRJ() error
	AE5TransportConnectResponse() error
	AE6ExamineAssociateRQ(rq *pdu.AssociateRQContainer) (ExaminationResult, error)
	AE7SendAssociationAC(ac *pdu.AssociateACContainer) error
	AE8SendAssociationRJ(rj *pdu.AssociateRJContainer) error
	DT1SendPData(pd *pdu.PDataContainer) error
	DT2IndicatePData(pd *pdu.PDataContainer) error
	AA1SendAssociationAbort() error
	AA2CloseTransport() error
	AA3IndicatePeerAborted() error
	AA4IndicateAPAbort() error
	AA5StopArtimTimer() error
	AA6IgnorePDU() error
	AA7SendAbort() error
	AA8UnrecognizedPDUSendAbort() error
	AR1SendReleaseRQ() error
	AR2IndicateRelease() error
	AR3ConfirmRelease() error
	AR4SendReleaseRP() error
	AR5StopArtimTimer() error
	AR6IndicatePData(pd *pdu.PDataContainer) error
	AR7SendPData() error
	AR8IndicateAssociationRelease() error
	AR9SendAssociationReleaseRP() error
	AR10ConfirmRelease() error
}

// StateMachine holds nothing but the current state and the fixed role; all
// other association state (sockets, negotiated contexts, buffers) lives on
// whatever implements Actions.
type StateMachine struct {
	state State
	role  Role
}

// New starts a state machine in State01 (idle), as every association does.
func New(role Role) *StateMachine {
	return &StateMachine{state: State01, role: role}
}

// State reports the current state, mostly for logging and tests.
func (m *StateMachine) State() State { return m.state }

func invalidEvent(state State, event Event) error {
	return ulerr.New(ulerr.KindInvalidEventForState, "event %s is not valid in %s", event.Kind, state)
}

// ProcessEvent drives exactly one transition of PS3.8 table 9-10. It
// returns the error from whichever Actions method the transition invokes,
// or an InvalidEventForState error if the table has no entry for
// (m.state, event.Kind).
func (m *StateMachine) ProcessEvent(event Event, actions Actions) error {
	switch event.Kind {
	case EvAAssociateReqLocalUser:
		switch m.state {
		case State01:
			m.state = State04
			return actions.AE1TransportConnect()
		default:
			return invalidEvent(m.state, event)
		}

	case EvTransConnConfirmLocalUser:
		switch m.state {
		case State04:
			m.state = State05
			return actions.AE2SendAssociationRQPDU()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAAssociateAcPduRcv:
		switch m.state {
		case State02:
			m.state = State13
			return actions.AA1SendAssociationAbort()
		case State05:
			m.state = State06
			return actions.AE3AssociationConfirmationAC()
		case State13:
			return actions.AA6IgnorePDU()
		case State03, State06, State07, State08, State09, State10, State11, State12:
			m.state = State13
			return actions.AA8UnrecognizedPDUSendAbort()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAAssociateRjPduRcv:
		switch m.state {
		case State02:
			m.state = State13
			return actions.AA1SendAssociationAbort()
		case State05:
			m.state = State01
			return actions.AE4AssociateConfirmationRJ()
		case State13:
			return actions.AA6IgnorePDU()
		case State03, State06, State07, State08, State09, State10, State11, State12:
			m.state = State13
			return actions.AA8UnrecognizedPDUSendAbort()
		default:
			return invalidEvent(m.state, event)
		}

	case EvTransConnIndication:
		switch m.state {
		case State01:
			m.state = State02
			return actions.AE5TransportConnectResponse()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAAssociateRqPduRcv:
		switch m.state {
		case State02:
			result, err := actions.AE6ExamineAssociateRQ(event.AssociateRQ)
			if err != nil {
				return err
			}
			if result == Accept {
				m.state = State03
			} else {
				m.state = State13
			}
			return nil
		case State13:
			return actions.AA7SendAbort()
		case State03, State05, State06, State07, State08, State09, State10, State11, State12:
			m.state = State13
			return actions.AA8UnrecognizedPDUSendAbort()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAAssociateResponseAccept:
		switch m.state {
		case State03:
			m.state = State06
			return actions.AE7SendAssociationAC(event.AssociateAC)
		default:
			return invalidEvent(m.state, event)
		}

	case EvAAssociateResponseReject:
		switch m.state {
		case State03:
			m.state = State13
			return actions.AE8SendAssociationRJ(event.AssociateRJ)
		default:
			return invalidEvent(m.state, event)
		}

	case EvPDataReq:
		switch m.state {
		case State06:
			return actions.DT1SendPData(event.PData)
		case State08:
			return actions.AR7SendPData()
		default:
			return invalidEvent(m.state, event)
		}

	case EvPDataTfPduRcv:
		switch m.state {
		case State02:
			m.state = State13
			return actions.AA1SendAssociationAbort()
		case State03, State08, State09, State10, State11, State12:
			m.state = State13
			return actions.AA8UnrecognizedPDUSendAbort()
		case State05:
			m.state = State13
			return actions.AA8UnrecognizedPDUSendAbort()
		case State06:
			return actions.DT2IndicatePData(event.PData)
		case State07:
			return actions.AR6IndicatePData(event.PData)
		case State13:
			return actions.AA6IgnorePDU()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAReleaseReq:
		switch m.state {
		case State06:
			m.state = State07
			return actions.AR1SendReleaseRQ()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAReleaseRQPduRcv:
		switch m.state {
		case State02:
			m.state = State13
			return actions.AA1SendAssociationAbort()
		case State03, State05, State08, State09, State10, State11, State12:
			m.state = State13
			return actions.AA8UnrecognizedPDUSendAbort()
		case State06:
			m.state = State08
			return actions.AR2IndicateRelease()
		case State07:
			if m.role == RoleRequester {
				m.state = State09
			} else {
				m.state = State10
			}
			return actions.AR8IndicateAssociationRelease()
		case State13:
			return actions.AA6IgnorePDU()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAReleaseRpPduRcv:
		switch m.state {
		case State02:
			m.state = State13
			return actions.AA1SendAssociationAbort()
		case State03, State05, State06, State08, State09, State12:
			m.state = State13
			return actions.AA8UnrecognizedPDUSendAbort()
		case State07:
			m.state = State01
			return actions.AR3ConfirmRelease()
		case State10:
			m.state = State12
			return actions.AR10ConfirmRelease()
		case State11:
			m.state = State01
			return actions.AR3ConfirmRelease()
		case State13:
			return actions.AA6IgnorePDU()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAReleaseResp:
		switch m.state {
		case State08, State12:
			m.state = State13
			return actions.AR4SendReleaseRP()
		case State09:
			m.state = State11
			return actions.AR9SendAssociationReleaseRP()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAAbortReq:
		switch m.state {
		case State03, State05, State06, State07, State08, State09, State10, State11, State12:
			m.state = State13
			return actions.AA1SendAssociationAbort()
		case State04:
			m.state = State01
			return actions.AA2CloseTransport()
		default:
			return invalidEvent(m.state, event)
		}

	case EvAAbortPduRcv:
		switch m.state {
		case State02, State13:
			m.state = State01
			return actions.AA2CloseTransport()
		case State03, State05, State06, State07, State08, State09, State10, State11, State12:
			m.state = State01
			return actions.AA3IndicatePeerAborted()
		default:
			return invalidEvent(m.state, event)
		}

	case EvTransConnClosed:
		switch m.state {
		case State02:
			m.state = State01
			return actions.AA5StopArtimTimer()
		case State03, State04, State05, State06, State07, State08, State09, State10, State11, State12:
			m.state = State01
			return actions.AA4IndicateAPAbort()
		case State13:
			m.state = State01
			return actions.AR5StopArtimTimer()
		default:
			return invalidEvent(m.state, event)
		}

	case EvArtimTimerExpired:
		switch m.state {
		case State02, State13:
			m.state = State01
			return actions.AA2CloseTransport()
		default:
			return invalidEvent(m.state, event)
		}

	case EvInvalidPdu:
		switch m.state {
		case State02:
			m.state = State13
			return actions.AA1SendAssociationAbort()
		case State03, State05, State06, State07, State08, State09, State10, State11, State12:
			m.state = State13
			return actions.AA8UnrecognizedPDUSendAbort()
		case State13:
			return actions.AA7SendAbort()
		default:
			return invalidEvent(m.state, event)
		}

	default:
		return invalidEvent(m.state, event)
	}
}
