package association

import (
	"time"

	"github.com/mjpearson/dicomul/negotiate"
)

// DefaultMaxPDUSize is the maximum PDU size this module advertises and
// enforces when none is configured: 16 KiB.
const DefaultMaxPDUSize = 16384

// DefaultArtimTimeout is how long the association waits for the peer's next
// PDU while in S02 (awaiting A-ASSOCIATE-RQ) or S13 (awaiting transport
// close) before translating the stall into ArtimTimerExpired.
// PS3.8 doesn't mandate a value.
const DefaultArtimTimeout = 10 * time.Second

// Options configures an Association's local identity and capabilities.
// SupportedContexts is only consulted by ReceiveAssociation (the acceptor
// path); a requester supplies the presentation contexts it proposes
// directly to RequestAssociation.
type Options struct {
	// CalledAETitle and CallingAETitle populate the AE title fields;
	// an acceptor checks neither against the peer's claims (no ACSE-level
	// title verification is specified) but echoes them back on the AC.
	CalledAETitle  string
	CallingAETitle string

	// ApplicationContextName, if empty, defaults to
	// pdu.DICOMApplicationContextName.
	ApplicationContextName string

	// MaxPDUSize bounds both outgoing P-DATA fragmentation and incoming
	// PDU acceptance. Zero means
	// DefaultMaxPDUSize.
	MaxPDUSize uint32

	// SupportedContexts is this application's negotiation table, consulted
	// by ReceiveAssociation via the negotiate package.
	SupportedContexts []negotiate.SupportedContext

	// ImplementationClassUID and ImplementationVersionName populate the
	// corresponding user-information sub-items; each is sent only when
	// non-empty.
	ImplementationClassUID    string
	ImplementationVersionName string

	// ArtimTimeout is the read deadline armed while in S02/S13. Zero means
	// DefaultArtimTimeout.
	ArtimTimeout time.Duration
}

func (o Options) maxPDUSize() uint32 {
	if o.MaxPDUSize == 0 {
		return DefaultMaxPDUSize
	}
	return o.MaxPDUSize
}

func (o Options) artimTimeout() time.Duration {
	if o.ArtimTimeout == 0 {
		return DefaultArtimTimeout
	}
	return o.ArtimTimeout
}
