// Package ulerr defines the error taxonomy shared by every package in this
// module: transport errors, protocol errors, state-machine errors, and the
// semantic conditions (peer abort, peer-requested release) that a caller of
// the association façade needs to distinguish from the rest.
package ulerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the four families from the core's
// error-handling design: transport, protocol, state-machine, semantic.
type Kind int

const (
	// KindIO wraps a raw I/O failure on the underlying stream.
	KindIO Kind = iota
	// KindNoPDUAvailable is a clean EOF before any header byte was read.
	KindNoPDUAvailable
	// KindPDUTooLarge is a declared PDU length exceeding the configured maximum.
	KindPDUTooLarge
	// KindInvalidPDU is a malformed sub-item, unknown top-level type, or bad framing.
	KindInvalidPDU
	// KindInvalidPData is a reassembly-rule violation (mixed context/type, PDV after is_last, truncated message).
	KindInvalidPData
	// KindInvalidPresentationContextID is a PDV referencing an unnegotiated context.
	KindInvalidPresentationContextID
	// KindUnexpectedPdvType is a PDV whose value_type doesn't match the caller's expectation.
	KindUnexpectedPdvType
	// KindUnsupportedTransferSyntax is a negotiated transfer syntax the registry doesn't know.
	KindUnsupportedTransferSyntax
	// KindBadCommandType is an unrecognized DIMSE CommandField value.
	KindBadCommandType
	// KindInvalidCommandData is a malformed or missing required command attribute.
	KindInvalidCommandData
	// KindInvalidEventForState is an event fed to the state machine with no transition defined.
	KindInvalidEventForState
	// KindUnexpectedState is a post-transition state that violates a caller's precondition.
	KindUnexpectedState
	// KindInconsistentState is an internal invariant violation (e.g. consuming current_pdata that was never set).
	KindInconsistentState
	// KindPeerAbortedAssociation surfaces after the transport is shut down in response to a peer A-ABORT.
	KindPeerAbortedAssociation
	// KindPeerRequestedRelease surfaces when the peer asks to release the association while the caller was reading data.
	KindPeerRequestedRelease
)

var kindNames = map[Kind]string{
	KindIO:                           "io",
	KindNoPDUAvailable:               "no_pdu_available",
	KindPDUTooLarge:                  "pdu_too_large",
	KindInvalidPDU:                   "invalid_pdu",
	KindInvalidPData:                 "invalid_pdata",
	KindInvalidPresentationContextID: "invalid_presentation_context_id",
	KindUnexpectedPdvType:            "unexpected_pdv_type",
	KindUnsupportedTransferSyntax:    "unsupported_transfer_syntax",
	KindBadCommandType:               "bad_command_type",
	KindInvalidCommandData:           "invalid_command_data",
	KindInvalidEventForState:         "invalid_event_for_state",
	KindUnexpectedState:              "unexpected_state",
	KindInconsistentState:            "inconsistent_state",
	KindPeerAbortedAssociation:       "peer_aborted_association",
	KindPeerRequestedRelease:         "peer_requested_release",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the single error type returned by this module. Callers that need
// to branch on the taxonomy should use errors.As to recover it and switch on
// Kind, or the Is* helpers below.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Message != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a lower-level cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
