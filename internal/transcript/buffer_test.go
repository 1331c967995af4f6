package transcript

import (
	"errors"
	"testing"
)

func TestAppend_InOrder(t *testing.T) {
	var b Buffer
	for i := 0; i < 3; i++ {
		accepted, err := b.Append(Turn{Speaker: SpeakerCustomer, Text: "hi", Index: i})
		if err != nil {
			t.Fatalf("unexpected error at index %d: %v", i, err)
		}
		if !accepted {
			t.Fatalf("turn %d not accepted", i)
		}
	}
	if b.Len() != 3 {
		t.Errorf("expected 3 turns, got %d", b.Len())
	}
}

func TestAppend_DuplicateIsNoOp(t *testing.T) {
	var b Buffer
	b.Append(Turn{Index: 0, Text: "first"})
	b.Append(Turn{Index: 1, Text: "second"})

	accepted, err := b.Append(Turn{Index: 1, Text: "second again"})
	if err != nil {
		t.Fatalf("duplicate should not error: %v", err)
	}
	if accepted {
		t.Error("duplicate should not be accepted")
	}
	if b.Len() != 2 {
		t.Errorf("duplicate must not grow the buffer, len=%d", b.Len())
	}
}

func TestAppend_GapRejected(t *testing.T) {
	var b Buffer
	b.Append(Turn{Index: 0})
	b.Append(Turn{Index: 1})
	b.Append(Turn{Index: 2})

	_, err := b.Append(Turn{Index: 4})
	var ooo *OutOfOrderError
	if !errors.As(err, &ooo) {
		t.Fatalf("expected OutOfOrderError, got %v", err)
	}
	if ooo.Got != 4 || ooo.Want != 3 {
		t.Errorf("expected got=4 want=3, got %+v", ooo)
	}
	if b.Len() != 3 {
		t.Errorf("rejected turn must not alter the buffer, len=%d", b.Len())
	}
}

func TestView_Restartable(t *testing.T) {
	var b Buffer
	b.Append(Turn{Index: 0, Text: "a"})
	b.Append(Turn{Index: 1, Text: "b"})

	view := b.View()

	var first []string
	for turn := range view {
		first = append(first, turn.Text)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 turns on first pass, got %d", len(first))
	}

	// Restarting the same view yields the same turns again.
	var second []string
	for turn := range view {
		second = append(second, turn.Text)
	}
	if len(second) != 2 || second[0] != "a" || second[1] != "b" {
		t.Errorf("restarted view mismatch: %v", second)
	}
}

func TestView_SeesLaterTurns(t *testing.T) {
	var b Buffer
	b.Append(Turn{Index: 0, Text: "a"})

	view := b.View()
	count := 0
	for range view {
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 turn, got %d", count)
	}

	b.Append(Turn{Index: 1, Text: "b"})
	count = 0
	for range view {
		count++
	}
	if count != 2 {
		t.Errorf("view should reflect turns accepted since, got %d", count)
	}
}

func TestView_EarlyBreak(t *testing.T) {
	var b Buffer
	for i := 0; i < 5; i++ {
		b.Append(Turn{Index: i})
	}
	seen := 0
	for range b.View() {
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Errorf("expected early break after 2, got %d", seen)
	}
}
