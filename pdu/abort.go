package pdu

import (
	"github.com/mjpearson/dicomul/ulerr"
	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// AbortRQSource identifies who originated the abort.
type AbortRQSource byte

const (
	AbortRQSourceServiceUser     AbortRQSource = 0
	AbortRQSourceServiceProvider AbortRQSource = 2
)

// AbortRQServiceProviderReason enumerates reasons when Source is
// ServiceProvider; it is meaningless (and conventionally zero) when Source
// is ServiceUser, which supplies its own reason out of band.
type AbortRQServiceProviderReason byte

const (
	AbortRQReasonNotSpecified             AbortRQServiceProviderReason = 0
	AbortRQReasonUnrecognizedPDU          AbortRQServiceProviderReason = 1
	AbortRQReasonUnexpectedPDU            AbortRQServiceProviderReason = 2
	AbortRQReasonUnrecognizedPDUParameter AbortRQServiceProviderReason = 4
	AbortRQReasonUnexpectedPDUParameter   AbortRQServiceProviderReason = 5
	AbortRQReasonInvalidPDUParameterValue AbortRQServiceProviderReason = 6
)

// AbortRQContainer is the decoded payload of an A-ABORT PDU.
type AbortRQContainer struct {
	Source AbortRQSource
	Reason AbortRQServiceProviderReason
}

func (*AbortRQContainer) Kind() Type { return TypeAbortRQ }

func readAbortRQ(d *dicomio.Reader) (PDU, error) {
	d.Skip(2)
	source, err := d.ReadUInt8()
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading abort source")
	}
	reason, err := d.ReadUInt8()
	if err != nil {
		return nil, ulerr.Wrap(ulerr.KindIO, err, "reading abort reason")
	}
	return &AbortRQContainer{
		Source: AbortRQSource(source),
		Reason: AbortRQServiceProviderReason(reason),
	}, nil
}

func writeAbortRQ(c *AbortRQContainer) ([]byte, error) {
	return []byte{0, 0, byte(c.Source), byte(c.Reason)}, nil
}
