package association

import (
	"github.com/mjpearson/dicomul/fsm"
	"github.com/mjpearson/dicomul/metrics"
	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
)

// NewRequester builds an Association in the requester role, ready to drive
// RequestAssociation over transport.
func NewRequester(transport Transport, opts Options, collector *metrics.Collector) *Association {
	return newAssociation(transport, fsm.RoleRequester, opts, collector)
}

// RequestAssociation runs the requester path, symmetric to
// ReceiveAssociation: it proposes contexts, sends the A-ASSOCIATE-RQ, and
// processes whichever of A-ASSOCIATE-AC/-RJ the peer answers with. On
// return with a nil error the association is Established (S06) and
// AcceptedContexts reflects what the peer agreed to.
func (a *Association) RequestAssociation(proposed []pdu.PresentationContextProposed) error {
	a.proposedContexts = proposed

	if err := a.driveOneEvent(fsm.AAssociateReqLocalUser(), nil); err != nil {
		return err
	}
	if err := a.driveOneEvent(fsm.TransConnConfirmLocalUser(), nil); err != nil {
		return err
	}

	event, readErr := a.pumpOnce()
	if err := a.driveOneEvent(event, readErr); err != nil {
		return err
	}

	switch a.sm.State() {
	case fsm.State06:
		a.metrics.AssociationEstablished()
		return nil
	case fsm.State01:
		a.metrics.AssociationRejected()
		if a.rejection != nil {
			return ulerr.New(ulerr.KindInvalidPDU, "association rejected: result=%v source=%v reason=%d",
				a.rejection.Result, a.rejection.Source, a.rejection.Reason)
		}
		if a.pendingError != nil {
			return a.pendingError
		}
		return ulerr.New(ulerr.KindUnexpectedState, "association request failed with no recorded cause")
	default:
		return ulerr.New(ulerr.KindUnexpectedState, "expected S06 or S01 after A-ASSOCIATE response, got %v", a.sm.State())
	}
}
