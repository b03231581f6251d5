package datasetdecoder

import "fmt"

// StatusCode is a DIMSE response status, PS3.7 Annex C.
type StatusCode uint16

// Status codes the Verification SCP can return in a C-ECHO-RSP.
const (
	StatusSuccess               StatusCode = 0x0000
	// StatusSOPClassNotSupported indicates a different SOP class than the
	// Verification SOP class was named in AffectedSOPClassUID.
	StatusSOPClassNotSupported  StatusCode = 0x0122
	// StatusDuplicateInvocation indicates the MessageID is already in use by
	// another outstanding operation on this association.
	StatusDuplicateInvocation   StatusCode = 0x0210
	// StatusUnrecognizedOperation indicates the peer does not implement
	// C-ECHO for the named SOP class.
	StatusUnrecognizedOperation StatusCode = 0x0211
	// StatusMistypedArgument indicates a parameter was supplied that the two
	// DIMSE users never agreed to use on this association.
	StatusMistypedArgument      StatusCode = 0x0212
)

func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusSOPClassNotSupported:
		return "SOPClassNotSupported"
	case StatusDuplicateInvocation:
		return "DuplicateInvocation"
	case StatusUnrecognizedOperation:
		return "UnrecognizedOperation"
	case StatusMistypedArgument:
		return "MistypedArgument"
	default:
		return fmt.Sprintf("StatusCode(0x%04X)", uint16(s))
	}
}

// Status is a DIMSE response status plus its optional error payload.
type Status struct {
	Code         StatusCode
	ErrorComment string
}

// Success is the canonical OK response status.
var Success = Status{Code: StatusSuccess}
