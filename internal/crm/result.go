package crm

import "RepAuthBot/internal/models/domain"

// Outcome separates a definite answer from "could not ask".
type Outcome int

const (
	OutcomeAuthenticated Outcome = iota + 1
	// OutcomeRejected: the CRM answered and the credentials are not usable.
	OutcomeRejected
	// OutcomeUnavailable: the CRM could not be asked. Retrying later may succeed.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result of a credential check. Token is set only when OK reports true.
type Result struct {
	Outcome  Outcome
	Token    string
	Customer *domain.Customer
	Reason   string
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeAuthenticated && r.Token != ""
}

func unavailable(reason string) Result {
	return Result{Outcome: OutcomeUnavailable, Reason: reason}
}
