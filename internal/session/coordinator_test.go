package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/outdial-ai/outdial/internal/bus"
	"github.com/outdial-ai/outdial/internal/call"
)

type memPersister struct {
	upserts []call.Snapshot
	failN   int
}

func (m *memPersister) UpsertAttempt(_ context.Context, snap call.Snapshot) error {
	if m.failN > 0 {
		m.failN--
		return errors.New("database unavailable")
	}
	m.upserts = append(m.upserts, snap)
	return nil
}

type memPublisher struct {
	published []struct {
		Subject string
		Data    any
	}
}

func (m *memPublisher) Publish(subject string, data any) error {
	m.published = append(m.published, struct {
		Subject string
		Data    any
	}{subject, data})
	return nil
}

func payload(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestCoordinator_FullCall(t *testing.T) {
	p := &memPersister{}
	pub := &memPublisher{}
	c := NewCoordinator(p, pub, slog.Default())

	if err := c.Register("att-1", "collections-default", "be polite"); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.HandleSessionStarted(bus.SubjectSessionStarted, payload(t, StartedEvent{AttemptID: "att-1"}))

	snap, ok := c.Snapshot("att-1")
	if !ok || snap.Status != call.StatusInProgress {
		t.Fatalf("expected in-progress attempt, got %+v ok=%v", snap, ok)
	}

	turns := []TranscriptEvent{
		{AttemptID: "att-1", Speaker: "AGENT", Text: "Good morning, this is Sarah from XYZ Bank.", TurnIndex: 0},
		{AttemptID: "att-1", Speaker: "CUSTOMER", Text: "hello", TurnIndex: 1},
		{AttemptID: "att-1", Speaker: "CUSTOMER", Text: "I will pay tomorrow online", TurnIndex: 2},
	}
	for _, evt := range turns {
		c.HandleTranscriptTurn(bus.SubjectSessionTranscript, payload(t, evt))
	}

	c.HandleSessionEnded(bus.SubjectSessionEnded, payload(t, EndedEvent{
		AttemptID: "att-1", Reason: "completed", RecordingToken: "rec-1",
	}))

	if c.Active() != 0 {
		t.Errorf("terminal attempt must be released, still holding %d", c.Active())
	}
	if len(p.upserts) == 0 {
		t.Fatal("expected a terminal upsert")
	}
	last := p.upserts[len(p.upserts)-1]
	if last.Status != call.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", last.Status)
	}
	if last.Disposition == nil || last.Disposition.Category != "payment-claimed-no-date" {
		t.Errorf("unexpected disposition: %+v", last.Disposition)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected one terminal event, got %d", len(pub.published))
	}
	if pub.published[0].Subject != bus.SubjectAttemptTerminal {
		t.Errorf("unexpected subject %s", pub.published[0].Subject)
	}
	te, ok := pub.published[0].Data.(TerminalEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", pub.published[0].Data)
	}
	if te.AttemptID != "att-1" || te.Category != "payment-claimed-no-date" {
		t.Errorf("unexpected terminal event %+v", te)
	}
}

func TestCoordinator_RegisterTwice(t *testing.T) {
	c := NewCoordinator(&memPersister{}, nil, slog.Default())
	if err := c.Register("att-1", "a", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := c.Register("att-1", "a", ""); err == nil {
		t.Error("second register for the same attempt must fail")
	}
}

func TestCoordinator_UnknownAttemptIgnored(t *testing.T) {
	p := &memPersister{}
	c := NewCoordinator(p, nil, slog.Default())

	c.HandleSessionStarted(bus.SubjectSessionStarted, payload(t, StartedEvent{AttemptID: "ghost"}))
	c.HandleTranscriptTurn(bus.SubjectSessionTranscript, payload(t, TranscriptEvent{AttemptID: "ghost", Text: "hi"}))
	c.HandleSessionEnded(bus.SubjectSessionEnded, payload(t, EndedEvent{AttemptID: "ghost", Reason: "completed"}))

	if len(p.upserts) != 0 {
		t.Errorf("events for unknown attempts must not write, got %d upserts", len(p.upserts))
	}
}

func TestCoordinator_PreDialFailure(t *testing.T) {
	p := &memPersister{}
	c := NewCoordinator(p, &memPublisher{}, slog.Default())
	c.Register("att-2", "collections-default", "")

	// sessionEnded straight from INITIATED: the dial failed before any
	// session event.
	c.HandleSessionEnded(bus.SubjectSessionEnded, payload(t, EndedEvent{
		AttemptID: "att-2", Reason: "no_answer",
	}))

	if len(p.upserts) != 1 {
		t.Fatalf("expected one terminal upsert, got %d", len(p.upserts))
	}
	snap := p.upserts[0]
	if snap.Status != call.StatusFailed {
		t.Errorf("expected FAILED, got %s", snap.Status)
	}
	if snap.Disposition.Category != "no-answer" {
		t.Errorf("expected no-answer, got %s", snap.Disposition.Category)
	}
	if snap.DurationSeconds != 0 {
		t.Errorf("pre-dial failures have zero duration, got %d", snap.DurationSeconds)
	}
}

func TestCoordinator_TerminalWriteFailureKeepsAttempt(t *testing.T) {
	p := &memPersister{failN: 3} // in-progress write, terminal write, first retry
	pub := &memPublisher{}
	c := NewCoordinator(p, pub, slog.Default())
	c.Register("att-3", "collections-default", "")

	c.HandleSessionStarted(bus.SubjectSessionStarted, payload(t, StartedEvent{AttemptID: "att-3"}))
	ended := payload(t, EndedEvent{AttemptID: "att-3", Reason: "completed"})
	c.HandleSessionEnded(bus.SubjectSessionEnded, ended)

	if c.Active() != 1 {
		t.Fatal("attempt must stay registered while the terminal write is failing")
	}
	if len(pub.published) != 0 {
		t.Error("no terminal event before the write lands")
	}

	// Redelivery of the same ended event retries the identical snapshot.
	c.HandleSessionEnded(bus.SubjectSessionEnded, ended)

	if c.Active() != 0 {
		t.Error("attempt must be released once the write lands")
	}
	if len(p.upserts) != 1 {
		t.Fatalf("expected exactly one successful write, got %d", len(p.upserts))
	}
	if !p.upserts[0].Status.Terminal() {
		t.Error("the successful write must be the terminal snapshot")
	}
	if len(pub.published) != 1 {
		t.Errorf("expected one terminal event after recovery, got %d", len(pub.published))
	}
}
