package instructions

import (
	"strings"
	"testing"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	return c
}

func TestResolveKnownAgent(t *testing.T) {
	c := newTestCatalog(t)
	brief, err := c.Resolve("collections-default", Customer{
		Name:         "Jordan Lee",
		AccountLast4: "4821",
		AmountDue:    500,
		DaysPastDue:  12,
		LateFee:      25,
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	for _, want := range []string{
		"Jordan Lee",
		"account ending 4821",
		"500.00",
		"12 days past due",
		"250.00",
		"payment reminder assistant for overdue accounts",
	} {
		if !strings.Contains(brief, want) {
			t.Errorf("brief missing %q", want)
		}
	}

	// Persona greeting replaces the base one.
	if strings.Contains(brief, "may I speak with") {
		t.Error("base greeting should be suppressed when persona has its own")
	}
	if n := strings.Count(brief, "INITIAL GREETING"); n != 1 {
		t.Errorf("expected exactly one greeting block, got %d", n)
	}
}

func TestResolveUnknownAgentFallsBackToBase(t *testing.T) {
	c := newTestCatalog(t)
	brief, err := c.Resolve("no-such-agent", Customer{Name: "Sam", AccountLast4: "1111"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.Contains(brief, "may I speak with Sam") {
		t.Error("base greeting missing for unknown agent")
	}
	if strings.Contains(brief, "CONVERSATION STEPS") {
		t.Error("unknown agent should not get persona content")
	}
}

func TestResolveDefaultsMissingFields(t *testing.T) {
	c := newTestCatalog(t)
	brief, err := c.Resolve("", Customer{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.Contains(brief, "may I speak with Customer") {
		t.Error("expected default customer name")
	}
	if !strings.Contains(brief, "account ending 0000") {
		t.Error("expected default account digits")
	}
}

func TestResolvePredueReminder(t *testing.T) {
	c := newTestCatalog(t)
	brief, err := c.Resolve("predue-reminder", Customer{
		Name:         "Ava",
		AccountLast4: "9032",
		AmountDue:    120,
		DaysUntilDue: 5,
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.Contains(brief, "due in 5 days") {
		t.Error("brief missing due window")
	}
	if !strings.Contains(brief, "upcoming payment") {
		t.Error("brief missing predue greeting")
	}
}

func TestAgents(t *testing.T) {
	c := newTestCatalog(t)
	got := c.Agents()
	want := []string{"collections-default", "predue-reminder"}
	if len(got) != len(want) {
		t.Fatalf("expected %d agents, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("agent %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
