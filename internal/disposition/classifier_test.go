package disposition

import (
	"testing"

	"github.com/outdial-ai/outdial/internal/transcript"
)

func turns(t *testing.T, texts ...transcript.Turn) *transcript.Buffer {
	t.Helper()
	var b transcript.Buffer
	for i, turn := range texts {
		turn.Index = i
		if _, err := b.Append(turn); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
	}
	return &b
}

func customer(text string) transcript.Turn {
	return transcript.Turn{Speaker: transcript.SpeakerCustomer, Text: text}
}

func agent(text string) transcript.Turn {
	return transcript.Turn{Speaker: transcript.SpeakerAgent, Text: text}
}

func TestClassify_NotConnectedShortCircuit(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		name      string
		sipStatus string
		expected  Category
	}{
		{"busy line", "486 Busy Here", NotConnectedBusy},
		{"ring timeout", "ring timeout", NotConnectedNoAnswer},
		{"explicit no answer", "no answer from remote", NotConnectedNoAnswer},
		{"network error", "network error", NotConnectedFailed},
		{"empty status", "", NotConnectedFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Transcript content must be irrelevant for not-connected calls.
			b := turns(t, customer("I have a dispute, I will pay on 12/05"))
			v := c.Classify(b.View(), ConnMeta{Status: NotConnected, SIPStatus: tt.sipStatus}, 0)
			if v.Category != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, v.Category)
			}
			if v.Confidence != 1.0 {
				t.Errorf("not-connected verdicts are certain, got %f", v.Confidence)
			}
		})
	}
}

func TestClassify_HangupBoundary(t *testing.T) {
	c := NewClassifier()

	b := turns(t, agent("Good morning, am I speaking with Alex?"))
	v := c.Classify(b.View(), ConnMeta{Status: Connected}, 9)
	if v.Category != CustomerHangup {
		t.Errorf("9s with zero customer turns: expected customer-hangup, got %s", v.Category)
	}

	b = turns(t,
		agent("Good morning, am I speaking with Alex?"),
		customer("yes"),
	)
	v = c.Classify(b.View(), ConnMeta{Status: Connected}, 10)
	if v.Category == CustomerHangup {
		t.Error("10s with a customer turn must not be customer-hangup")
	}
}

func TestClassify_NoCustomerResponse(t *testing.T) {
	c := NewClassifier()
	b := turns(t,
		agent("Hello, this is Sarah from XYZ Bank."),
		agent("Your monthly payment is past due. Can we resolve this today?"),
	)
	v := c.Classify(b.View(), ConnMeta{Status: Connected}, 45)
	if v.Category != NoCustomerResponse {
		t.Errorf("expected no-customer-response, got %s", v.Category)
	}
}

func TestClassify_PrecedenceOverDispute(t *testing.T) {
	c := NewClassifier()
	b := turns(t,
		agent("Your payment is overdue."),
		customer("There is a mistake on my statement, that charge is wrong."),
		customer("But fine, I already paid it on 12/05 anyway."),
	)
	v := c.Classify(b.View(), ConnMeta{Status: Connected}, 60)
	if v.Category != PaymentClaimedWithDate {
		t.Errorf("payment-date commitment outranks dispute, got %s", v.Category)
	}
}

func TestClassify_TomorrowIsNotAnExplicitDate(t *testing.T) {
	c := NewClassifier()
	b := turns(t,
		agent("Your payment of $1500 is past due."),
		customer("Okay."),
		customer("I will pay tomorrow online."),
	)
	v := c.Classify(b.View(), ConnMeta{Status: Connected}, 40)
	if v.Category != PaymentClaimedNoDate {
		t.Errorf("expected payment-claimed-no-date, got %s", v.Category)
	}
}

func TestClassify_Categories(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		name     string
		turns    []transcript.Turn
		expected Category
	}{
		{
			name:     "payment claim with numeric date",
			turns:    []transcript.Turn{customer("I already paid on 12/05, check your records")},
			expected: PaymentClaimedWithDate,
		},
		{
			name:     "payment claim with weekday",
			turns:    []transcript.Turn{customer("I will pay on friday, you have my word")},
			expected: PaymentClaimedWithDate,
		},
		{
			name:     "bare payment claim",
			turns:    []transcript.Turn{customer("the payment went through this morning already")},
			expected: PaymentClaimedNoDate,
		},
		{
			name:     "balance maintenance",
			turns:    []transcript.Turn{customer("okay, I agree to maintain the minimum balance going forward")},
			expected: BalanceMaintenanceAgreed,
		},
		{
			name:     "bare promise",
			turns:    []transcript.Turn{customer("I promise to sort it out, definitely")},
			expected: AgreeToPay,
		},
		{
			name:     "near-term promise is acceptable",
			turns:    []transcript.Turn{customer("I promise, tomorrow it gets done")},
			expected: AcceptablePromise,
		},
		{
			name:     "far promise is unacceptable",
			turns:    []transcript.Turn{customer("I promise next month after my salary comes in")},
			expected: UnacceptablePromise,
		},
		{
			name:     "refusal",
			turns:    []transcript.Turn{customer("I'm not paying this, it's not my responsibility")},
			expected: RefusedToPay,
		},
		{
			name: "refusal then counseling",
			turns: []transcript.Turn{
				customer("I can't pay, I have no money"),
				agent("I hear you. Let's work together - can you manage half today?"),
				customer("no"),
			},
			expected: RefusedCounseled,
		},
		{
			name:     "human handoff",
			turns:    []transcript.Turn{customer("let me talk to a real person please")},
			expected: HumanHandoffRequested,
		},
		{
			name:     "dispute",
			turns:    []transcript.Turn{customer("this charge is incorrect, I want to raise a complaint")},
			expected: DisputeRaised,
		},
		{
			name:     "busy now",
			turns:    []transcript.Turn{customer("I'm driving, call me later")},
			expected: BusyNow,
		},
		{
			name: "delay reason",
			turns: []transcript.Turn{
				customer("I could not do it because my employer has not released our wages for the month yet"),
			},
			expected: DelayReasonGiven,
		},
		{
			name:     "uncertain intent",
			turns:    []transcript.Turn{customer("maybe, it depends how things go")},
			expected: UncertainIntent,
		},
		{
			name:     "general conversation with no signal",
			turns:    []transcript.Turn{customer("we moved house recently and the mail has been all over the place")},
			expected: General,
		},
		{
			name:     "minimal response",
			turns:    []transcript.Turn{agent("Your payment is due."), customer("okay")},
			expected: ReminderDeliveredNoProg,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := turns(t, tt.turns...)
			v := c.Classify(b.View(), ConnMeta{Status: Connected}, 60)
			if v.Category != tt.expected {
				t.Errorf("expected %s, got %s (evidence %v)", tt.expected, v.Category, v.Evidence)
			}
			if !v.Category.Valid() {
				t.Errorf("category %s not in the enumerated taxonomy", v.Category)
			}
		})
	}
}

func TestClassify_ConfidenceGrowsWithCorroboration(t *testing.T) {
	c := NewClassifier()

	one := turns(t, customer("I refuse to pay this"))
	v1 := c.Classify(one.View(), ConnMeta{Status: Connected}, 30)

	two := turns(t,
		customer("I refuse to pay this"),
		agent("Are you sure?"),
		customer("I said I'm not paying"),
	)
	v2 := c.Classify(two.View(), ConnMeta{Status: Connected}, 60)

	if v1.Category != RefusedToPay || v2.Category != RefusedToPay {
		t.Fatalf("expected refused-to-pay, got %s then %s", v1.Category, v2.Category)
	}
	if v2.Confidence <= v1.Confidence {
		t.Errorf("second refusal should raise confidence: %f then %f", v1.Confidence, v2.Confidence)
	}
}

func TestClassify_StrongerCategoryOverridesLeader(t *testing.T) {
	c := NewClassifier()

	early := turns(t, customer("this statement looks wrong to me"))
	v1 := c.Classify(early.View(), ConnMeta{Status: Connected}, 20)
	if v1.Category != DisputeRaised {
		t.Fatalf("expected dispute-raised first, got %s", v1.Category)
	}

	later := turns(t,
		customer("this statement looks wrong to me"),
		agent("I can look into that. The balance itself is past due."),
		customer("fine, I will pay it, send me the link"),
	)
	v2 := c.Classify(later.View(), ConnMeta{Status: Connected}, 60)
	if v2.Category != PaymentClaimedNoDate {
		t.Errorf("payment claim should displace dispute, got %s", v2.Category)
	}
}

func TestClassify_TriggeringTurn(t *testing.T) {
	c := NewClassifier()
	b := turns(t,
		agent("Hello"),
		customer("who is this"),
		customer("oh right, I already paid"),
	)
	v := c.Classify(b.View(), ConnMeta{Status: Connected}, 30)
	if v.Category != PaymentClaimedNoDate {
		t.Fatalf("expected payment-claimed-no-date, got %s", v.Category)
	}
	if v.TriggeringTurn != 2 {
		t.Errorf("expected triggering turn 2, got %d", v.TriggeringTurn)
	}
}
