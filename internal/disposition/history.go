package disposition

// Tracker records every classifier verdict issued during one call attempt.
// Append-only; entries are never mutated or removed. It exists for
// "why did we conclude X" audits — the lifecycle machine only ever consults
// Latest.
type Tracker struct {
	verdicts []Verdict
}

// Record appends a verdict to the audit trail.
func (t *Tracker) Record(v Verdict) {
	t.verdicts = append(t.verdicts, v)
}

// Latest returns the most recent verdict, if any.
func (t *Tracker) Latest() (Verdict, bool) {
	if len(t.verdicts) == 0 {
		return Verdict{}, false
	}
	return t.verdicts[len(t.verdicts)-1], true
}

// All returns a copy of the full ordered audit trail.
func (t *Tracker) All() []Verdict {
	out := make([]Verdict, len(t.verdicts))
	copy(out, t.verdicts)
	return out
}
