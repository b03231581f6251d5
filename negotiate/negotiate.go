// Package negotiate implements presentation-context negotiation: given the
// set of contexts a peer proposed and the set this application supports,
// decide which to accept and which transfer syntax to use for each.
package negotiate

import "github.com/mjpearson/dicomul/pdu"

// SupportedContext is one abstract syntax this application is willing to
// negotiate, along with the transfer syntaxes it can handle for it and
// which side's preference order wins a tie when more than one proposed
// transfer syntax is acceptable.
type SupportedContext struct {
	AbstractSyntax   string
	TransferSyntaxes []string
	// ScpPriority, when true, picks the first of SupportedContext's own
	// TransferSyntaxes (in this list's order) that also appears anywhere
	// in the proposal. When false (the default, SCU priority), it instead
	// picks the first of the proposal's transfer syntaxes (in the
	// proposal's order) that also appears in this list. The two scans
	// only disagree when the proposal offers more than one transfer
	// syntax this context supports; which one wins depends on whose
	// ordering is consulted first. This asymmetry is intentional and
	// preserved as-is rather than "fixed" into a single canonical order.
	ScpPriority bool
}

// AcceptedContext is one presentation context both sides agreed on: the
// proposal's context ID and abstract syntax, plus the transfer syntax
// Accept chose for it.
type AcceptedContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
}

// Accept decides the result for one proposed presentation context against
// the full list of contexts this application supports. It never returns an
// error: every outcome, including "nothing matched", is expressed as a
// PresentationContextResult with the appropriate reason.
func Accept(proposed pdu.PresentationContextProposed, supported []SupportedContext) pdu.PresentationContextResult {
	for _, sc := range supported {
		if sc.AbstractSyntax != proposed.AbstractSyntax {
			continue
		}
		if ts, ok := matchTransferSyntax(proposed, sc); ok {
			return pdu.PresentationContextResult{
				ID:             proposed.ID,
				Reason:         pdu.PresentationContextAcceptance,
				TransferSyntax: ts,
			}
		}
		return pdu.PresentationContextResult{
			ID:     proposed.ID,
			Reason: pdu.PresentationContextTransferSyntaxesNotSupported,
		}
	}
	return pdu.PresentationContextResult{
		ID:     proposed.ID,
		Reason: pdu.PresentationContextAbstractSyntaxNotSupported,
	}
}

func matchTransferSyntax(proposed pdu.PresentationContextProposed, sc SupportedContext) (string, bool) {
	if sc.ScpPriority {
		for _, scpTS := range sc.TransferSyntaxes {
			for _, scuTS := range proposed.TransferSyntaxes {
				if scuTS == scpTS {
					return scuTS, true
				}
			}
		}
		return "", false
	}
	for _, scuTS := range proposed.TransferSyntaxes {
		for _, scpTS := range sc.TransferSyntaxes {
			if scuTS == scpTS {
				return scuTS, true
			}
		}
	}
	return "", false
}

// AcceptAll negotiates every proposed context against supported, returning
// the full set of A-ASSOCIATE-AC results in proposal order and the subset
// that were actually accepted (for the caller to remember as the
// association's AcceptedContext set).
func AcceptAll(proposed []pdu.PresentationContextProposed, supported []SupportedContext) ([]pdu.PresentationContextResult, []AcceptedContext) {
	results := make([]pdu.PresentationContextResult, 0, len(proposed))
	var accepted []AcceptedContext
	for _, pc := range proposed {
		result := Accept(pc, supported)
		results = append(results, result)
		if result.Reason == pdu.PresentationContextAcceptance {
			accepted = append(accepted, AcceptedContext{
				ID:             pc.ID,
				AbstractSyntax: pc.AbstractSyntax,
				TransferSyntax: result.TransferSyntax,
			})
		}
	}
	return results, accepted
}
