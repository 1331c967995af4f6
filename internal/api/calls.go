package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/outdial-ai/outdial/internal/bus"
	"github.com/outdial-ai/outdial/internal/call"
	"github.com/outdial-ai/outdial/internal/instructions"
	"github.com/outdial-ai/outdial/internal/recording"
	"github.com/outdial-ai/outdial/internal/store"
)

// Dispatcher is the coordinator surface the API needs: register new attempts
// and read live state.
type Dispatcher interface {
	Register(attemptID, agentID, instructions string) error
	Snapshot(attemptID string) (call.Snapshot, bool)
	Active() int
}

// AttemptStore reads persisted attempts and KPI rollups.
type AttemptStore interface {
	GetAttempt(ctx context.Context, id string) (call.Snapshot, error)
	KPIs(ctx context.Context, window time.Duration) (store.KPIReport, error)
}

// RecordingLocator signs retrieval URLs for recording tokens.
type RecordingLocator interface {
	Locate(ctx context.Context, token string, ttl time.Duration) (recording.Location, error)
}

// Publisher sends the dial request to the telephony layer.
type Publisher interface {
	Publish(subject string, data any) error
}

// BriefResolver renders conversation briefs per agent id.
type BriefResolver interface {
	Resolve(agentID string, cust instructions.Customer) (string, error)
	Agents() []string
}

// Deps bundles the collaborators wired into the server at startup.
type Deps struct {
	Dispatcher             Dispatcher
	Store                  AttemptStore
	Locator                RecordingLocator
	Publisher              Publisher
	Briefs                 BriefResolver
	DefaultRecordingTTLSec int
	Logger                 *slog.Logger
}

// CustomerInfo is the account context passed to the voice agent.
type CustomerInfo struct {
	Name         string  `json:"name"`
	AccountLast4 string  `json:"account_last4"`
	AmountDue    float64 `json:"amount_due"`
	DaysPastDue  int     `json:"days_past_due"`
	LateFee      float64 `json:"late_fee"`
	DaysUntilDue int     `json:"days_until_due"`
}

// CallRequest is the POST /api/v1/calls payload.
type CallRequest struct {
	PhoneNumber string        `json:"phone_number"`
	AgentID     string        `json:"agent_id"`
	FromNumber  string        `json:"from_number,omitempty"`
	TransferTo  string        `json:"transfer_to,omitempty"`
	Customer    *CustomerInfo `json:"customer,omitempty"`
}

// CallResponse acknowledges an accepted dispatch.
type CallResponse struct {
	AttemptID string `json:"attempt_id"`
	RoomName  string `json:"room_name"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// DialRequest is the payload published on the dial request subject for the
// telephony layer to act on.
type DialRequest struct {
	AttemptID   string `json:"attempt_id"`
	RoomName    string `json:"room_name"`
	PhoneNumber string `json:"phone_number"`
	FromNumber  string `json:"from_number,omitempty"`
	TransferTo  string `json:"transfer_to,omitempty"`
	AgentID     string `json:"agent_id"`
}

// dispatchCall handles POST /api/v1/calls.
func (s *Server) dispatchCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	var cust instructions.Customer
	if req.Customer != nil {
		cust = instructions.Customer{
			Name:         req.Customer.Name,
			AccountLast4: req.Customer.AccountLast4,
			AmountDue:    req.Customer.AmountDue,
			DaysPastDue:  req.Customer.DaysPastDue,
			LateFee:      req.Customer.LateFee,
			DaysUntilDue: req.Customer.DaysUntilDue,
		}
	}
	brief, err := s.briefs.Resolve(req.AgentID, cust)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("rendering brief: %v", err))
		return
	}

	attemptID := uuid.New().String()
	roomName := "outbound-" + strings.ReplaceAll(req.PhoneNumber, "+", "")

	if err := s.dispatcher.Register(attemptID, req.AgentID, brief); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("registering attempt: %v", err))
		return
	}

	dial := DialRequest{
		AttemptID:   attemptID,
		RoomName:    roomName,
		PhoneNumber: req.PhoneNumber,
		FromNumber:  req.FromNumber,
		TransferTo:  req.TransferTo,
		AgentID:     req.AgentID,
	}
	if err := s.publisher.Publish(bus.SubjectDialRequest, dial); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("publishing dial request: %v", err))
		return
	}

	s.logger.Info("call dispatched", "attempt_id", attemptID, "room", roomName, "agent_id", req.AgentID)
	writeJSON(w, http.StatusAccepted, CallResponse{
		AttemptID: attemptID,
		RoomName:  roomName,
		Status:    string(call.StatusInitiated),
		Message:   "call dispatched to " + req.PhoneNumber,
	})
}

// getCall handles GET /api/v1/calls/{id}. Live attempts are served from the
// coordinator; terminal attempts from the store.
func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if snap, ok := s.dispatcher.Snapshot(id); ok {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	snap, err := s.store.GetAttempt(r.Context(), id)
	if errors.Is(err, store.ErrAttemptNotFound) {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	if err != nil {
		s.logger.Error("attempt lookup failed", "attempt_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "attempt lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// getRecording handles GET /api/v1/calls/{id}/recording.
func (s *Server) getRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ttl := time.Duration(s.defaultTTL) * time.Second
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ttl: "+raw)
			return
		}
		ttl = time.Duration(secs) * time.Second
	}

	snap, ok := s.dispatcher.Snapshot(id)
	if !ok {
		var err error
		snap, err = s.store.GetAttempt(r.Context(), id)
		if errors.Is(err, store.ErrAttemptNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
			return
		}
		if err != nil {
			s.logger.Error("attempt lookup failed", "attempt_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "attempt lookup failed")
			return
		}
	}

	loc, err := s.locator.Locate(r.Context(), snap.RecordingToken, ttl)
	if err != nil {
		var invalid *recording.InvalidTTLError
		switch {
		case errors.As(err, &invalid):
			writeError(w, http.StatusBadRequest, invalid.Error())
		case errors.Is(err, recording.ErrRecordingNotFound):
			writeError(w, http.StatusNotFound, "recording not found")
		default:
			s.logger.Error("recording lookup failed", "attempt_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "recording lookup failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// getKPIs handles GET /api/v1/kpis.
func (s *Server) getKPIs(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("window_hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window_hours: "+raw)
			return
		}
		hours = n
	}

	report, err := s.store.KPIs(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		s.logger.Error("kpi rollup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "kpi rollup failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
