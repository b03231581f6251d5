package association

import (
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
	"github.com/mjpearson/dicomul/fsm"
	"github.com/mjpearson/dicomul/metrics"
	"github.com/mjpearson/dicomul/negotiate"
	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/ulerr"
)

// NewAcceptor builds an Association in the acceptor role, ready to drive
// ReceiveAssociation over transport. opts.SupportedContexts is the
// negotiation table ReceiveAssociation matches the peer's proposal
// against.
func NewAcceptor(transport Transport, opts Options, collector *metrics.Collector) *Association {
	return newAssociation(transport, fsm.RoleAcceptor, opts, collector)
}

// ReceiveAssociation runs the acceptance path: it feeds the
// transport-open indication, reads and processes the peer's
// A-ASSOCIATE-RQ, negotiates presentation contexts against
// opts.SupportedContexts, and sends the A-ASSOCIATE-AC. On return with a
// nil error the association is Established (S06).
func (a *Association) ReceiveAssociation() error {
	if err := a.driveOneEvent(fsm.TransConnIndication(), nil); err != nil {
		return err
	}

	event, readErr := a.pumpOnce()
	if err := a.driveOneEvent(event, readErr); err != nil {
		return err
	}

	if a.sm.State() != fsm.State03 {
		if a.pendingError != nil {
			return a.pendingError
		}
		if a.rejection != nil {
			a.metrics.AssociationRejected()
			return ulerr.New(ulerr.KindInvalidPDU, "association rejected: %+v", a.rejection)
		}
		return ulerr.New(ulerr.KindUnexpectedState, "expected S03 after A-ASSOCIATE-RQ, got %v", a.sm.State())
	}

	results, accepted := negotiate.AcceptAll(a.negotiatedRQ.PresentationContexts, a.options.SupportedContexts)
	if len(accepted) == 0 {
		dicomlog.Vprintf(0, "dicomul.association(%s): no proposed context matched; accepting association with zero contexts", a.label)
	}
	for _, acc := range accepted {
		dicomlog.Vprintf(1, "dicomul.association(%s): accepted context %d: %s under %s",
			a.label, acc.ID, dicomuid.UIDString(acc.AbstractSyntax), dicomuid.UIDString(acc.TransferSyntax))
	}

	ac := &pdu.AssociateACContainer{
		ProtocolVersion:        1,
		CalledAETitle:          a.negotiatedRQ.CalledAETitle,
		CallingAETitle:         a.negotiatedRQ.CallingAETitle,
		ApplicationContextName: a.negotiatedRQ.ApplicationContextName,
		PresentationContexts:   results,
		UserVariables:          a.userInformation(),
	}
	a.AcceptedContexts = accepted

	if err := a.driveOneEvent(fsm.AAssociateResponseAccept(ac), nil); err != nil {
		a.metrics.AssociationRejected()
		return err
	}
	a.metrics.AssociationEstablished()
	return nil
}

