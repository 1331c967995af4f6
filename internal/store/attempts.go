package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/outdial-ai/outdial/internal/call"
	"github.com/outdial-ai/outdial/internal/disposition"
)

// ErrAttemptNotFound is returned when no row exists for an attempt id.
var ErrAttemptNotFound = errors.New("attempt not found")

// UpsertAttempt writes the current attempt snapshot, keyed by id. The write
// is idempotent: replaying the same snapshot leaves the row unchanged apart
// from updated_at. Rows for different attempt ids never block each other.
func (s *Store) UpsertAttempt(ctx context.Context, snap call.Snapshot) error {
	var (
		category, connStatus, businessOutcome *string
		evidence                              []string
		detectedAt                            *time.Time
		paymentDiscussed, disputeRaised       bool
		followUp                              bool
	)
	if d := snap.Disposition; d != nil {
		cat := string(d.Category)
		cs := string(d.ConnectionStatus)
		bo := d.Category.BusinessOutcome()
		category, connStatus, businessOutcome = &cat, &cs, &bo
		evidence = d.Evidence
		detectedAt = nullTime(d.DetectedAt)
		paymentDiscussed = d.Category.PaymentDiscussed()
		disputeRaised = d.Category == disposition.DisputeRaised
		followUp = d.Category.FollowUpRequired()
	}

	var promiseAmount *float64
	var promiseDate *string
	if p := snap.PaymentPromise; p != nil {
		promiseAmount, promiseDate = &p.Amount, &p.PromisedDate
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO call_attempts (
			id, agent_id, status, outcome, start_time, end_time,
			duration_seconds, end_reason, disposition_category,
			connection_status, disposition_evidence, disposition_detected_at,
			promise_amount, promise_date, recording_token, business_outcome,
			payment_discussed, dispute_raised, follow_up_required, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, now())
		ON CONFLICT (id) DO UPDATE SET
			status                  = EXCLUDED.status,
			outcome                 = EXCLUDED.outcome,
			start_time              = EXCLUDED.start_time,
			end_time                = EXCLUDED.end_time,
			duration_seconds        = EXCLUDED.duration_seconds,
			end_reason              = EXCLUDED.end_reason,
			disposition_category    = EXCLUDED.disposition_category,
			connection_status       = EXCLUDED.connection_status,
			disposition_evidence    = EXCLUDED.disposition_evidence,
			disposition_detected_at = EXCLUDED.disposition_detected_at,
			promise_amount          = EXCLUDED.promise_amount,
			promise_date            = EXCLUDED.promise_date,
			recording_token         = EXCLUDED.recording_token,
			business_outcome        = EXCLUDED.business_outcome,
			payment_discussed       = EXCLUDED.payment_discussed,
			dispute_raised          = EXCLUDED.dispute_raised,
			follow_up_required      = EXCLUDED.follow_up_required,
			updated_at              = now()`,
		snap.ID, snap.AgentID, string(snap.Status), string(snap.Outcome),
		nullTime(snap.StartTime), nullTime(snap.EndTime),
		snap.DurationSeconds, nullStr(string(snap.EndReason)),
		category, connStatus, evidence, detectedAt,
		promiseAmount, promiseDate, nullStr(snap.RecordingToken), businessOutcome,
		paymentDiscussed, disputeRaised, followUp,
	)
	if err != nil {
		return fmt.Errorf("upsert attempt %s: %w", snap.ID, err)
	}
	return nil
}

// GetAttempt loads the persisted snapshot for an attempt id.
func (s *Store) GetAttempt(ctx context.Context, id string) (call.Snapshot, error) {
	var (
		snap       call.Snapshot
		status     string
		outcome    string
		startTime  *time.Time
		endTime    *time.Time
		endReason  *string
		category   *string
		connStatus *string
		evidence   []string
		detectedAt *time.Time
		amount     *float64
		date       *string
		recToken   *string
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, agent_id, status, outcome, start_time, end_time,
		       duration_seconds, end_reason, disposition_category,
		       connection_status, disposition_evidence, disposition_detected_at,
		       promise_amount, promise_date, recording_token
		FROM call_attempts WHERE id = $1`, id,
	).Scan(
		&snap.ID, &snap.AgentID, &status, &outcome, &startTime, &endTime,
		&snap.DurationSeconds, &endReason, &category, &connStatus,
		&evidence, &detectedAt, &amount, &date, &recToken,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return call.Snapshot{}, ErrAttemptNotFound
	}
	if err != nil {
		return call.Snapshot{}, fmt.Errorf("get attempt %s: %w", id, err)
	}

	snap.Status = call.Status(status)
	snap.Outcome = call.Outcome(outcome)
	if startTime != nil {
		snap.StartTime = *startTime
	}
	if endTime != nil {
		snap.EndTime = *endTime
	}
	if endReason != nil {
		snap.EndReason = call.EndReason(*endReason)
	}
	if recToken != nil {
		snap.RecordingToken = *recToken
	}
	if category != nil {
		d := &call.Disposition{
			Category: disposition.Category(*category),
			Evidence: evidence,
		}
		if connStatus != nil {
			d.ConnectionStatus = disposition.ConnectionStatus(*connStatus)
		}
		if detectedAt != nil {
			d.DetectedAt = *detectedAt
		}
		snap.Disposition = d
	}
	if amount != nil || date != nil {
		p := &disposition.PaymentPromise{}
		if amount != nil {
			p.Amount = *amount
		}
		if date != nil {
			p.PromisedDate = *date
		}
		snap.PaymentPromise = p
	}
	return snap, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
