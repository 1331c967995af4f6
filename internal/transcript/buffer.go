package transcript

import (
	"fmt"
	"iter"
)

// Speaker identifies which side of the call produced a turn.
type Speaker string

const (
	SpeakerAgent    Speaker = "AGENT"
	SpeakerCustomer Speaker = "CUSTOMER"
)

// Turn is a single utterance in a call. Index is assigned by the session
// layer and is monotonic within one attempt.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	Index   int     `json:"turn_index"`
}

// OutOfOrderError reports a gap in the turn stream: the session layer sent an
// index ahead of the next expected one. The buffer is left untouched and the
// session layer is expected to redeliver the missing turns.
type OutOfOrderError struct {
	Got  int
	Want int
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("out-of-order turn: got index %d, want %d", e.Got, e.Want)
}

// Buffer accumulates transcript turns in arrival order for the lifetime of
// one call attempt. It is not safe for concurrent use; each attempt has a
// single writer.
type Buffer struct {
	turns []Turn
}

// Append accepts the next turn in sequence. It returns accepted=false with a
// nil error for duplicates (index already accepted, tolerated because the
// session layer delivers at-least-once) and an *OutOfOrderError for gaps.
func (b *Buffer) Append(t Turn) (accepted bool, err error) {
	next := len(b.turns)
	switch {
	case t.Index < next:
		return false, nil
	case t.Index > next:
		return false, &OutOfOrderError{Got: t.Index, Want: next}
	}
	b.turns = append(b.turns, t)
	return true, nil
}

// Len returns the number of accepted turns.
func (b *Buffer) Len() int {
	return len(b.turns)
}

// View returns a lazy, restartable sequence of the turns accepted so far.
// Ranging over it never blocks. The sequence is not a snapshot: a view
// obtained before more turns arrive will include them when ranged again.
func (b *Buffer) View() iter.Seq[Turn] {
	return func(yield func(Turn) bool) {
		for _, t := range b.turns {
			if !yield(t) {
				return
			}
		}
	}
}
