package call

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outdial-ai/outdial/internal/disposition"
	"github.com/outdial-ai/outdial/internal/transcript"
)

// Persister is the only mutation path out of the state machine. Upserts are
// idempotent keyed by attempt id and must not block across attempt ids.
type Persister interface {
	UpsertAttempt(ctx context.Context, snap Snapshot) error
}

// Machine owns the authoritative state of one call attempt from the first
// session event until the terminal write. One session drives one machine;
// callers must not share a machine across concurrent event streams.
type Machine struct {
	attempt    Attempt
	buf        *transcript.Buffer
	classifier *disposition.Classifier
	history    *disposition.Tracker
	persister  Persister
	logger     *slog.Logger
	clock      func() time.Time

	// terminalDirty is set when the terminal snapshot exists in memory but
	// the terminal write has not succeeded yet.
	terminalDirty bool
}

// NewMachine creates a machine for an attempt in INITIATED state. The agent
// instructions are resolved once by the caller and passed by value; the
// machine never reads ambient configuration.
func NewMachine(id, agentID, instructions string, p Persister, logger *slog.Logger) *Machine {
	return &Machine{
		attempt: Attempt{
			ID:           id,
			AgentID:      agentID,
			Instructions: instructions,
			Status:       StatusInitiated,
			Outcome:      OutcomePending,
		},
		buf:        &transcript.Buffer{},
		classifier: disposition.NewClassifier(),
		history:    &disposition.Tracker{},
		persister:  p,
		logger:     logger,
		clock:      time.Now,
	}
}

// Snapshot returns an isolated copy of the current attempt state.
func (m *Machine) Snapshot() Snapshot {
	return m.attempt.clone()
}

// History returns the full disposition audit trail recorded so far.
func (m *Machine) History() []disposition.Verdict {
	return m.history.All()
}

// OnSessionStarted transitions INITIATED to IN_PROGRESS. A duplicate start
// event is a no-op; a start on a terminal attempt is rejected.
func (m *Machine) OnSessionStarted(ctx context.Context) error {
	switch {
	case m.attempt.Status.Terminal():
		return fmt.Errorf("session started on %s attempt %s: %w", m.attempt.Status, m.attempt.ID, ErrAttemptAlreadyTerminal)
	case m.attempt.Status == StatusInProgress:
		return nil
	case m.attempt.Status != StatusInitiated:
		return fmt.Errorf("session started from %s: %w", m.attempt.Status, ErrInvalidTransition)
	}

	m.attempt.Status = StatusInProgress
	m.attempt.StartTime = m.clock().UTC()
	m.logger.Info("call in progress", "attempt_id", m.attempt.ID)

	// Observability write only; the terminal write is the one that matters.
	if err := m.persister.UpsertAttempt(ctx, m.attempt.clone()); err != nil {
		m.logger.Warn("in-progress snapshot write failed", "attempt_id", m.attempt.ID, "error", err)
	}
	return nil
}

// OnTranscriptTurn appends a turn, re-classifies the conversation so far and
// records the verdict. Duplicate turns are dropped without re-classification;
// gapped turns are rejected without touching any state.
func (m *Machine) OnTranscriptTurn(turn transcript.Turn) error {
	switch {
	case m.attempt.Status.Terminal():
		return fmt.Errorf("transcript turn on %s attempt %s: %w", m.attempt.Status, m.attempt.ID, ErrAttemptAlreadyTerminal)
	case m.attempt.Status != StatusInProgress:
		return fmt.Errorf("transcript turn from %s: %w", m.attempt.Status, ErrInvalidTransition)
	}

	accepted, err := m.buf.Append(turn)
	if err != nil {
		return err
	}
	if !accepted {
		return nil
	}

	elapsed := m.clock().UTC().Sub(m.attempt.StartTime).Seconds()
	v := m.classifier.Classify(m.buf.View(), disposition.ConnMeta{Status: disposition.Connected}, elapsed)
	m.history.Record(v)

	if turn.Speaker == transcript.SpeakerCustomer {
		if p := disposition.ExtractPromise(turn.Text); p != nil {
			m.attempt.PaymentPromise = p
		}
	}

	m.logger.Debug("verdict recorded",
		"attempt_id", m.attempt.ID,
		"turn", turn.Index,
		"category", v.Category,
		"confidence", v.Confidence,
	)
	return nil
}

// OnSessionEnded freezes the attempt. Connection-level failures become FAILED
// with the matching not-connected category regardless of any transcript
// verdict; everything else becomes COMPLETED with the latest recorded verdict
// (general if the classifier never ran). The terminal write happens exactly
// once per distinct terminal intent; a duplicate call with the same reason
// returns the frozen snapshot.
func (m *Machine) OnSessionEnded(ctx context.Context, reason EndReason, recordingToken string) (Snapshot, error) {
	if m.attempt.Status.Terminal() {
		if reason == m.attempt.EndReason {
			return m.attempt.clone(), nil
		}
		return Snapshot{}, fmt.Errorf("session ended (%s) on attempt %s already terminal with %s: %w",
			reason, m.attempt.ID, m.attempt.EndReason, ErrAttemptAlreadyTerminal)
	}

	now := m.clock().UTC()
	m.attempt.EndTime = now
	// Attempts that never connected have no start time; their duration is
	// zero by contract.
	if m.attempt.StartTime.IsZero() {
		m.attempt.DurationSeconds = 0
	} else {
		m.attempt.DurationSeconds = int(now.Sub(m.attempt.StartTime).Seconds())
	}
	m.attempt.EndReason = reason
	m.attempt.RecordingToken = recordingToken

	if reason.connectionFailure() {
		cat := reason.failureCategory()
		v := disposition.Verdict{
			Timestamp:      now,
			Category:       cat,
			Confidence:     1.0,
			TriggeringTurn: -1,
			Evidence:       []string{"reason:" + string(reason)},
		}
		m.history.Record(v)
		m.attempt.Status = StatusFailed
		m.attempt.Outcome = OutcomeFailed
		m.attempt.Disposition = &Disposition{
			Category:         cat,
			ConnectionStatus: disposition.NotConnected,
			Evidence:         v.Evidence,
			DetectedAt:       now,
		}
	} else {
		v, ok := m.history.Latest()
		if !ok {
			v = disposition.Verdict{Timestamp: now, Category: disposition.General, TriggeringTurn: -1}
		}
		m.attempt.Status = StatusCompleted
		m.attempt.Outcome = OutcomeSuccess
		m.attempt.Disposition = &Disposition{
			Category:         v.Category,
			ConnectionStatus: disposition.Connected,
			Evidence:         append([]string(nil), v.Evidence...),
			DetectedAt:       now,
		}
	}

	m.logger.Info("call terminal",
		"attempt_id", m.attempt.ID,
		"status", m.attempt.Status,
		"category", m.attempt.Disposition.Category,
		"duration_s", m.attempt.DurationSeconds,
	)

	snap := m.attempt.clone()
	m.terminalDirty = true
	if err := m.persister.UpsertAttempt(ctx, snap); err != nil {
		return snap, &PersistenceError{AttemptID: m.attempt.ID, Err: err}
	}
	m.terminalDirty = false
	return snap, nil
}

// RetryTerminalWrite re-sends the frozen terminal snapshot after a failed
// terminal write. It never re-runs classification.
func (m *Machine) RetryTerminalWrite(ctx context.Context) error {
	if !m.attempt.Status.Terminal() {
		return fmt.Errorf("retry terminal write from %s: %w", m.attempt.Status, ErrInvalidTransition)
	}
	if !m.terminalDirty {
		return nil
	}
	if err := m.persister.UpsertAttempt(ctx, m.attempt.clone()); err != nil {
		return &PersistenceError{AttemptID: m.attempt.ID, Err: err}
	}
	m.terminalDirty = false
	return nil
}
