package association

import (
	"github.com/mjpearson/dicomul/fsm"
)

// Release performs a graceful close: it issues A-RELEASE-RQ and
// drives whatever exchange follows through to S01, including the
// release-collision forks (S09/S11/S12) the peer's own simultaneous
// A-RELEASE-RQ can trigger.
func (a *Association) Release() error {
	if err := a.driveOneEvent(fsm.AReleaseReq(), nil); err != nil {
		return err
	}
	return a.drainToReleased()
}

// RespondToRelease answers a release the peer initiated while this
// association was Established: ReceiveDataSet/ReadDIMSECommand surface
// that as a KindPeerRequestedRelease error (S06->S08 via AR-2), and the
// caller calls RespondToRelease to send A-RELEASE-RP and bring the state
// machine back to S01.
func (a *Association) RespondToRelease() error {
	if err := a.driveOneEvent(fsm.AReleaseResp(), nil); err != nil {
		return err
	}
	return a.drainToReleased()
}

// drainToReleased loops reading transport events and answering whichever
// side of a release collision still owes a response, until the state
// machine settles back in S01.
func (a *Association) drainToReleased() error {
	for {
		switch a.sm.State() {
		case fsm.State01:
			return nil
		case fsm.State09, fsm.State12:
			// The local side's release response is still due regardless
			// of which collision fork we're on (AR-9 from S09, AR-4 from
			// S12); the state machine picks the right one.
			if err := a.driveOneEvent(fsm.AReleaseResp(), nil); err != nil {
				return err
			}
			continue
		}

		event, readErr := a.pumpOnce()
		if err := a.driveOneEvent(event, readErr); err != nil {
			return err
		}
		// A peer abort during the release exchange lands back in State01
		// too, so the pending error has to be checked before the
		// state-based return or it would read as a clean release.
		if a.pendingError != nil {
			err := a.pendingError
			a.pendingError = nil
			return err
		}
		if a.sm.State() == fsm.State01 {
			return nil
		}
	}
}

// AbortAssociation performs a caller-initiated abort: it feeds
// AAbortReq, which drives AA-1 to write the A-ABORT PDU before moving to
// S13. Unlike Release, it does not wait for the peer's transport close;
// callers that want the connection fully torn down should follow up with
// Close.
func (a *Association) AbortAssociation() error {
	return a.driveOneEvent(fsm.AAbortReq(), nil)
}

// Close closes the underlying transport directly, bypassing the state
// machine. Safe to call after Release, AbortAssociation, or a failed
// ReceiveAssociation/RequestAssociation to guarantee the socket is shut
// down.
func (a *Association) Close() error {
	return a.transport.Close()
}
