package disposition

import (
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/outdial-ai/outdial/internal/transcript"
)

// ConnMeta carries the connection signals the telephony layer reports
// alongside the transcript.
type ConnMeta struct {
	Status ConnectionStatus
	// SIPStatus is the failure detail for calls that never connected
	// ("486 Busy Here", "ring timeout", "network error", ...).
	SIPStatus string
}

// Verdict is one classifier output at one point in the call.
type Verdict struct {
	Timestamp      time.Time `json:"timestamp"`
	Category       Category  `json:"category"`
	Confidence     float64   `json:"confidence"`
	TriggeringTurn int       `json:"triggering_turn"`
	Evidence       []string  `json:"evidence,omitempty"`
}

// Classifier maps a transcript-so-far plus connection metadata to a ranked
// disposition. It is pure: it never errors and holds no per-call state.
type Classifier struct {
	now func() time.Time
}

func NewClassifier() *Classifier {
	return &Classifier{now: time.Now}
}

// Keyword vocabularies. Matching is case-insensitive substring matching over
// the customer's combined text, so entries must be specific enough not to
// shadow each other ("will pay" vs "won't pay").
var (
	paymentClaimKeywords = []string{
		"already paid", "just paid", "i paid", "have paid", "will pay",
		"i'll pay", "going to pay", "i can pay", "pay online", "pay it online",
		"make the payment", "made the payment", "payment went through",
		"cleared", "settled", "deposited",
	}
	promiseKeywords = []string{
		"promise", "guarantee", "definitely", "surely", "arrange the money",
		"arrange the funds",
	}
	refusalKeywords = []string{
		"won't pay", "will not pay", "not paying", "refuse", "can't pay",
		"cannot pay", "no money", "not my responsibility", "unable to pay",
	}
	counselKeywords = []string{
		"i understand", "i hear you", "work together", "can you manage",
		"let me see how i can help", "keep your account active",
	}
	handoffKeywords = []string{
		"human", "real person", "representative", "speak to someone",
		"talk to someone", "supervisor", "manager", "speak to an agent",
	}
	disputeKeywords = []string{
		"dispute", "complaint", "issue", "problem", "error", "mistake",
		"wrong", "incorrect",
	}
	busyKeywords = []string{
		"busy", "driving", "in a meeting", "not free", "call later",
		"call me later", "bad time", "occupied",
	}
	delayKeywords = []string{
		"because", "due to", "reason", "since",
	}
	uncertainKeywords = []string{
		"not sure", "maybe", "i don't know", "depends", "we'll see", "might",
	}
	nearTermKeywords = []string{
		"today", "tonight", "tomorrow", "day after tomorrow", "within two days",
		"in two days",
	}
	farTermKeywords = []string{
		"next week", "next month", "in a few weeks", "month end",
		"end of the month", "after my salary",
	}
)

// Explicit calendar dates. Relative day words ("today", "tomorrow") are
// deliberately not dates: a customer who says "I will pay tomorrow" has not
// committed to a payment date.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`),
	regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?(january|february|march|april|may|june|july|august|september|october|november|december)\b`),
	regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}\b`),
}

// Classify maps the transcript so far plus connection metadata to a single
// disposition verdict. It always returns exactly one of the twenty
// enumerated categories, never an error.
func (c *Classifier) Classify(view iter.Seq[transcript.Turn], meta ConnMeta, elapsedSeconds float64) Verdict {
	if meta.Status == NotConnected {
		return c.notConnected(meta.SIPStatus)
	}

	var turns []transcript.Turn
	for t := range view {
		turns = append(turns, t)
	}

	customerTurns := 0
	var parts []string
	for _, t := range turns {
		if t.Speaker == transcript.SpeakerCustomer {
			customerTurns++
			parts = append(parts, strings.ToLower(t.Text))
		}
	}
	customerText := strings.TrimSpace(strings.Join(parts, " "))

	// Early hangup: the call connected but the customer dropped before
	// contributing anything.
	if elapsedSeconds < 10 && customerTurns == 0 {
		return c.verdict(CustomerHangup, 0.9, -1, nil)
	}
	if customerText == "" {
		return c.verdict(NoCustomerResponse, 0.9, -1, nil)
	}

	// Fixed-precedence scan. The first matching rule wins; ties between
	// categories are broken by this order, not by recency.
	if hits := matchKeywords(customerText, paymentClaimKeywords); len(hits) > 0 {
		cat := PaymentClaimedNoDate
		if d, ok := explicitDate(customerText); ok {
			cat = PaymentClaimedWithDate
			hits = append(hits, "date:"+d)
		}
		return c.keywordVerdict(cat, turns, paymentClaimKeywords, hits)
	}

	if strings.Contains(customerText, "maintain") && strings.Contains(customerText, "balance") {
		hits := []string{"maintain", "balance"}
		return c.keywordVerdict(BalanceMaintenanceAgreed, turns, hits, hits)
	}

	if hits := matchKeywords(customerText, promiseKeywords); len(hits) > 0 {
		cat := AgreeToPay
		if d, ok := explicitDate(customerText); ok {
			cat = AcceptablePromise
			hits = append(hits, "date:"+d)
		} else if near := matchKeywords(customerText, nearTermKeywords); len(near) > 0 {
			cat = AcceptablePromise
			hits = append(hits, near...)
		} else if far := matchKeywords(customerText, farTermKeywords); len(far) > 0 {
			cat = UnacceptablePromise
			hits = append(hits, far...)
		}
		return c.keywordVerdict(cat, turns, promiseKeywords, hits)
	}

	if hits := matchKeywords(customerText, refusalKeywords); len(hits) > 0 {
		cat := RefusedToPay
		if agentCounseledAfterRefusal(turns) {
			cat = RefusedCounseled
		}
		return c.keywordVerdict(cat, turns, refusalKeywords, hits)
	}

	if hits := matchKeywords(customerText, handoffKeywords); len(hits) > 0 {
		return c.keywordVerdict(HumanHandoffRequested, turns, handoffKeywords, hits)
	}

	if hits := matchKeywords(customerText, disputeKeywords); len(hits) > 0 {
		return c.keywordVerdict(DisputeRaised, turns, disputeKeywords, hits)
	}

	if hits := matchKeywords(customerText, busyKeywords); len(hits) > 0 {
		return c.keywordVerdict(BusyNow, turns, busyKeywords, hits)
	}

	words := len(strings.Fields(customerText))
	if hits := matchKeywords(customerText, delayKeywords); len(hits) > 0 && words > 10 {
		return c.keywordVerdict(DelayReasonGiven, turns, delayKeywords, hits)
	}

	if hits := matchKeywords(customerText, uncertainKeywords); len(hits) > 0 {
		return c.keywordVerdict(UncertainIntent, turns, uncertainKeywords, hits)
	}

	// Nothing matched: a real conversation happened but yielded no signal,
	// or the customer gave only a minimal response to the reminder.
	if words > 5 {
		return c.verdict(General, 0, lastCustomerTurn(turns), nil)
	}
	return c.verdict(ReminderDeliveredNoProg, 0.2, lastCustomerTurn(turns), nil)
}

func (c *Classifier) notConnected(sipStatus string) Verdict {
	status := strings.ToLower(sipStatus)
	cat := NotConnectedFailed
	switch {
	case strings.Contains(status, "busy"):
		cat = NotConnectedBusy
	case strings.Contains(status, "no answer"), strings.Contains(status, "timeout"):
		cat = NotConnectedNoAnswer
	}
	var evidence []string
	if sipStatus != "" {
		evidence = []string{"sip:" + sipStatus}
	}
	return c.verdict(cat, 1.0, -1, evidence)
}

// keywordVerdict builds a verdict whose confidence grows with each customer
// turn that corroborates the winning vocabulary, capped below certainty.
func (c *Classifier) keywordVerdict(cat Category, turns []transcript.Turn, vocab, hits []string) Verdict {
	corroborating := 0
	trigger := -1
	for _, t := range turns {
		if t.Speaker != transcript.SpeakerCustomer {
			continue
		}
		if len(matchKeywords(strings.ToLower(t.Text), vocab)) > 0 {
			corroborating++
			if trigger == -1 {
				trigger = t.Index
			}
		}
	}
	confidence := 0.55 + 0.15*float64(corroborating)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return c.verdict(cat, confidence, trigger, hits)
}

func (c *Classifier) verdict(cat Category, confidence float64, trigger int, evidence []string) Verdict {
	return Verdict{
		Timestamp:      c.now().UTC(),
		Category:       cat,
		Confidence:     confidence,
		TriggeringTurn: trigger,
		Evidence:       evidence,
	}
}

func matchKeywords(text string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

func explicitDate(text string) (string, bool) {
	for _, re := range datePatterns {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

// agentCounseledAfterRefusal reports whether the agent responded to the
// customer's refusal with a counseling line before the call ended.
func agentCounseledAfterRefusal(turns []transcript.Turn) bool {
	refusedAt := -1
	for _, t := range turns {
		if t.Speaker == transcript.SpeakerCustomer && refusedAt == -1 {
			if len(matchKeywords(strings.ToLower(t.Text), refusalKeywords)) > 0 {
				refusedAt = t.Index
			}
		}
		if refusedAt != -1 && t.Speaker == transcript.SpeakerAgent && t.Index > refusedAt {
			if len(matchKeywords(strings.ToLower(t.Text), counselKeywords)) > 0 {
				return true
			}
		}
	}
	return false
}

func lastCustomerTurn(turns []transcript.Turn) int {
	last := -1
	for _, t := range turns {
		if t.Speaker == transcript.SpeakerCustomer {
			last = t.Index
		}
	}
	return last
}
