package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/outdial-ai/outdial/internal/bus"
	"github.com/outdial-ai/outdial/internal/call"
	"github.com/outdial-ai/outdial/internal/transcript"
)

// Publisher is the outbound half of the event bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// StartedEvent is the payload of telephony.session.started.
type StartedEvent struct {
	AttemptID string `json:"attempt_id"`
}

// TranscriptEvent is the payload of telephony.session.transcript.
type TranscriptEvent struct {
	AttemptID string `json:"attempt_id"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	TurnIndex int    `json:"turn_index"`
}

// EndedEvent is the payload of telephony.session.ended. The session layer
// translates abrupt disconnects into reason network_error exactly once.
type EndedEvent struct {
	AttemptID      string `json:"attempt_id"`
	Reason         string `json:"reason"`
	RecordingToken string `json:"recording_token,omitempty"`
	SIPStatus      string `json:"sip_status,omitempty"`
}

// TerminalEvent is published on outdial.attempt.terminal once the terminal
// write has succeeded.
type TerminalEvent struct {
	AttemptID string `json:"attempt_id"`
	Status    string `json:"status"`
	Category  string `json:"category"`
	Outcome   string `json:"outcome"`
}

// entry serializes event delivery for one attempt. One call is one event
// stream, but the bus delivers at-least-once so duplicates can race.
type entry struct {
	mu        sync.Mutex
	machine   *call.Machine
	published bool
}

// Coordinator routes telephony events to the per-attempt state machines. It
// holds every machine from dispatch until its terminal write lands.
type Coordinator struct {
	mu     sync.Mutex
	active map[string]*entry

	persister call.Persister
	publisher Publisher
	logger    *slog.Logger
}

func NewCoordinator(p call.Persister, pub Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		active:    make(map[string]*entry),
		persister: p,
		publisher: pub,
		logger:    logger,
	}
}

// Register creates the state machine for a freshly dispatched attempt.
func (c *Coordinator) Register(attemptID, agentID, instructions string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.active[attemptID]; exists {
		return fmt.Errorf("attempt %s already registered", attemptID)
	}
	c.active[attemptID] = &entry{
		machine: call.NewMachine(attemptID, agentID, instructions, c.persister, c.logger),
	}
	return nil
}

// Active returns the number of attempts currently held by the coordinator.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Snapshot returns the live state of an in-flight attempt, if held.
func (c *Coordinator) Snapshot(attemptID string) (call.Snapshot, bool) {
	e, ok := c.lookup(attemptID)
	if !ok {
		return call.Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Snapshot(), true
}

func (c *Coordinator) lookup(attemptID string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.active[attemptID]
	return e, ok
}

// HandleSessionStarted is the bus handler for telephony.session.started.
func (c *Coordinator) HandleSessionStarted(subject string, data []byte) {
	var evt StartedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("bad session started event", "error", err)
		return
	}
	e, ok := c.lookup(evt.AttemptID)
	if !ok {
		c.logger.Warn("session started for unknown attempt", "attempt_id", evt.AttemptID)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.machine.OnSessionStarted(context.Background()); err != nil {
		c.logger.Error("session started rejected", "attempt_id", evt.AttemptID, "error", err)
	}
}

// HandleTranscriptTurn is the bus handler for telephony.session.transcript.
// Out-of-order turns are rejected, not reordered; the session layer owns
// redelivery.
func (c *Coordinator) HandleTranscriptTurn(subject string, data []byte) {
	var evt TranscriptEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("bad transcript event", "error", err)
		return
	}
	e, ok := c.lookup(evt.AttemptID)
	if !ok {
		c.logger.Warn("transcript for unknown attempt", "attempt_id", evt.AttemptID)
		return
	}
	turn := transcript.Turn{
		Speaker: transcript.Speaker(evt.Speaker),
		Text:    evt.Text,
		Index:   evt.TurnIndex,
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.machine.OnTranscriptTurn(turn); err != nil {
		var ooo *transcript.OutOfOrderError
		if errors.As(err, &ooo) {
			c.logger.Warn("turn gap", "attempt_id", evt.AttemptID, "got", ooo.Got, "want", ooo.Want)
			return
		}
		c.logger.Error("transcript turn rejected", "attempt_id", evt.AttemptID, "error", err)
	}
}

// HandleSessionEnded is the bus handler for telephony.session.ended. It
// drives the terminal transition, retries a failed terminal write with the
// frozen snapshot, and releases the machine once the write has landed.
func (c *Coordinator) HandleSessionEnded(subject string, data []byte) {
	var evt EndedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("bad session ended event", "error", err)
		return
	}
	e, ok := c.lookup(evt.AttemptID)
	if !ok {
		c.logger.Warn("session ended for unknown attempt", "attempt_id", evt.AttemptID)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx := context.Background()
	snap, err := e.machine.OnSessionEnded(ctx, call.EndReason(evt.Reason), evt.RecordingToken)
	if err != nil {
		var perr *call.PersistenceError
		if !errors.As(err, &perr) {
			c.logger.Error("session ended rejected", "attempt_id", evt.AttemptID, "error", err)
			return
		}
		c.logger.Warn("terminal write failed, retrying", "attempt_id", evt.AttemptID, "error", perr)
	}

	// The duplicate-delivery path lands here with a clean machine; the retry
	// is then a no-op.
	if err := e.machine.RetryTerminalWrite(ctx); err != nil {
		c.logger.Error("terminal write still failing, keeping attempt for redelivery",
			"attempt_id", evt.AttemptID, "error", err)
		return
	}

	if !e.published {
		e.published = true
		if c.publisher != nil {
			terminal := TerminalEvent{
				AttemptID: snap.ID,
				Status:    string(snap.Status),
				Outcome:   string(snap.Outcome),
			}
			if snap.Disposition != nil {
				terminal.Category = string(snap.Disposition.Category)
			}
			if err := c.publisher.Publish(bus.SubjectAttemptTerminal, terminal); err != nil {
				c.logger.Warn("terminal event publish failed", "attempt_id", snap.ID, "error", err)
			}
		}
	}

	c.mu.Lock()
	delete(c.active, evt.AttemptID)
	c.mu.Unlock()
}
