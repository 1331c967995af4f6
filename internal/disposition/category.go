package disposition

// ConnectionStatus records whether the outbound call was ever answered.
type ConnectionStatus string

const (
	Connected    ConnectionStatus = "CONNECTED"
	NotConnected ConnectionStatus = "NOT_CONNECTED"
)

// Category is the closed disposition vocabulary. Seventeen categories apply
// to connected calls and three to calls that never connected. Adding a
// category is a schema change, not free text.
type Category string

const (
	// Connected-call categories.
	PaymentClaimedWithDate    Category = "payment-claimed-with-date"
	PaymentClaimedNoDate      Category = "payment-claimed-no-date"
	BalanceMaintenanceAgreed  Category = "balance-maintenance-agreed"
	AgreeToPay                Category = "agree-to-pay"
	General                   Category = "general"
	ReminderDeliveredNoProg   Category = "reminder-delivered-no-progress"
	RefusedToPay              Category = "refused-to-pay"
	RefusedCounseled          Category = "refused-counseled"
	HumanHandoffRequested     Category = "human-handoff-requested"
	DisputeRaised             Category = "dispute-raised"
	BusyNow                   Category = "busy-now"
	NoCustomerResponse        Category = "no-customer-response"
	CustomerHangup            Category = "customer-hangup"
	DelayReasonGiven          Category = "delay-reason-given"
	UncertainIntent           Category = "uncertain-intent"
	AcceptablePromise         Category = "acceptable-promise"
	UnacceptablePromise       Category = "unacceptable-promise"

	// Not-connected categories.
	NotConnectedBusy     Category = "busy"
	NotConnectedFailed   Category = "failed"
	NotConnectedNoAnswer Category = "no-answer"
)

// connectionOf maps every category to the connection status it implies.
var connectionOf = map[Category]ConnectionStatus{
	PaymentClaimedWithDate:   Connected,
	PaymentClaimedNoDate:     Connected,
	BalanceMaintenanceAgreed: Connected,
	AgreeToPay:               Connected,
	General:                  Connected,
	ReminderDeliveredNoProg:  Connected,
	RefusedToPay:             Connected,
	RefusedCounseled:         Connected,
	HumanHandoffRequested:    Connected,
	DisputeRaised:            Connected,
	BusyNow:                  Connected,
	NoCustomerResponse:       Connected,
	CustomerHangup:           Connected,
	DelayReasonGiven:         Connected,
	UncertainIntent:          Connected,
	AcceptablePromise:        Connected,
	UnacceptablePromise:      Connected,

	NotConnectedBusy:     NotConnected,
	NotConnectedFailed:   NotConnected,
	NotConnectedNoAnswer: NotConnected,
}

// Valid reports whether c is one of the twenty enumerated categories.
func (c Category) Valid() bool {
	_, ok := connectionOf[c]
	return ok
}

// Connection returns the connection status a category implies.
func (c Category) Connection() ConnectionStatus {
	if status, ok := connectionOf[c]; ok {
		return status
	}
	return Connected
}

// BusinessOutcome is the coarse downstream outcome recorded alongside the
// disposition in the interactions store.
func (c Category) BusinessOutcome() string {
	switch c {
	case PaymentClaimedWithDate, PaymentClaimedNoDate:
		return "PAYMENT_MADE"
	case BalanceMaintenanceAgreed, AgreeToPay, AcceptablePromise:
		return "PAYMENT_PROMISED"
	case RefusedToPay, RefusedCounseled:
		return "NOT_INTERESTED"
	case HumanHandoffRequested:
		return "TRANSFERRED_TO_HUMAN"
	case DisputeRaised:
		return "DISPUTE_CLAIM"
	case NoCustomerResponse, NotConnectedNoAnswer:
		return "NO_ANSWER"
	case CustomerHangup:
		return "HUNG_UP"
	case NotConnectedBusy:
		return "BUSY"
	case NotConnectedFailed:
		return "INVALID_NUMBER"
	default:
		return "WILL_CALL_BACK"
	}
}

// PaymentDiscussed reports whether the category implies payment was discussed.
func (c Category) PaymentDiscussed() bool {
	switch c {
	case PaymentClaimedWithDate, PaymentClaimedNoDate, AgreeToPay,
		AcceptablePromise, UnacceptablePromise, RefusedToPay, RefusedCounseled,
		BalanceMaintenanceAgreed:
		return true
	}
	return false
}

// FollowUpRequired reports whether the category leaves the account needing
// another touch.
func (c Category) FollowUpRequired() bool {
	switch c {
	case AcceptablePromise, UnacceptablePromise, AgreeToPay, BusyNow,
		UncertainIntent, DelayReasonGiven, General, ReminderDeliveredNoProg:
		return true
	}
	return false
}
