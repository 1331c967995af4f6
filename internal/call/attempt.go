package call

import (
	"time"

	"github.com/outdial-ai/outdial/internal/disposition"
)

// Status is the lifecycle state of one call attempt. INITIATED and
// IN_PROGRESS are the only non-terminal states.
type Status string

const (
	StatusInitiated  Status = "INITIATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further mutation of the attempt is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Outcome is the coarse result of an attempt, PENDING until terminal.
type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// EndReason is the enumerated session-end reason reported by the telephony
// layer.
type EndReason string

const (
	EndCompleted    EndReason = "completed"
	EndNoAnswer     EndReason = "no_answer"
	EndBusy         EndReason = "busy"
	EndNetworkError EndReason = "network_error"
	EndRejected     EndReason = "rejected"
)

// connectionFailure reports whether the reason means the call never held a
// conversation; such attempts fail regardless of any transcript verdict.
func (r EndReason) connectionFailure() bool {
	return r != EndCompleted
}

// failureCategory maps a connection-failure reason to its not-connected
// disposition category.
func (r EndReason) failureCategory() disposition.Category {
	switch r {
	case EndBusy:
		return disposition.NotConnectedBusy
	case EndNoAnswer:
		return disposition.NotConnectedNoAnswer
	default:
		return disposition.NotConnectedFailed
	}
}

// Disposition is the frozen classified outcome of a terminal attempt.
type Disposition struct {
	Category         disposition.Category         `json:"category"`
	ConnectionStatus disposition.ConnectionStatus `json:"connection_status"`
	Evidence         []string                     `json:"evidence,omitempty"`
	DetectedAt       time.Time                    `json:"detected_at"`
}

// Attempt is one outbound call to one customer for one campaign. Once Status
// is terminal no field may change; history lives in the disposition tracker,
// not here.
type Attempt struct {
	ID              string                          `json:"id"`
	AgentID         string                          `json:"agent_id"`
	Instructions    string                          `json:"-"`
	Status          Status                          `json:"status"`
	StartTime       time.Time                       `json:"start_time,omitzero"`
	EndTime         time.Time                       `json:"end_time,omitzero"`
	DurationSeconds int                             `json:"duration_seconds"`
	Outcome         Outcome                         `json:"outcome"`
	Disposition     *Disposition                    `json:"disposition,omitempty"`
	PaymentPromise  *disposition.PaymentPromise     `json:"payment_promise,omitempty"`
	RecordingToken  string                          `json:"recording_token,omitempty"`
	EndReason       EndReason                       `json:"end_reason,omitempty"`
}

// Snapshot is an isolated copy of the attempt state, safe to hand to the
// persistence layer while the machine keeps mutating (or after it froze).
type Snapshot = Attempt

// clone deep-copies the attempt so callers cannot reach back into machine
// state through shared slices or pointers.
func (a Attempt) clone() Snapshot {
	out := a
	if a.Disposition != nil {
		d := *a.Disposition
		d.Evidence = append([]string(nil), a.Disposition.Evidence...)
		out.Disposition = &d
	}
	if a.PaymentPromise != nil {
		p := *a.PaymentPromise
		out.PaymentPromise = &p
	}
	return out
}
