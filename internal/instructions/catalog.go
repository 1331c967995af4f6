// Package instructions assembles per-agent conversation briefs for outbound
// collection calls. A brief is the compliance base plus an optional persona
// layer keyed by agent id.
package instructions

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Customer carries the account fields interpolated into a brief. Zero values
// are rendered as-is, so callers should populate what they know.
type Customer struct {
	Name         string
	AccountLast4 string
	AmountDue    float64
	DaysPastDue  int
	LateFee      float64
	DaysUntilDue int
}

type briefData struct {
	Customer
	HalfAmount   float64
	SkipGreeting bool
}

const baseBrief = `{{if not .SkipGreeting}}INITIAL GREETING (MUST BE SAID FIRST WHEN CALL CONNECTS):
"Hello, may I speak with {{.Name}}?"

{{end}}CRITICAL: Confirm you are speaking with the account holder before discussing any account details.

Customer: {{.Name}}, account ending {{.AccountLast4}}, amount due {{printf "%.2f" .AmountDue}}, {{.DaysPastDue}} days past due.

OPT-OUT COMPLIANCE:
- If the customer asks to stop receiving calls, acknowledge immediately.
- End the call politely and do not argue or re-engage.

IMPORTANT RULES:
- Never threaten legal action or consequences beyond late fees.
- Never discuss account details with anyone other than the customer.
- If asked about late fees, state the current fee of {{printf "%.2f" .LateFee}} and nothing further.
- If the customer disputes the charge, note the dispute and offer a callback from a specialist.
`

type persona struct {
	id          string
	hasGreeting bool
	text        string
}

var builtinPersonas = []persona{
	{
		id:          "collections-default",
		hasGreeting: true,
		text: `You are a payment reminder assistant for overdue accounts.

INITIAL GREETING (MUST BE SAID FIRST WHEN CALL CONNECTS):
"Hello {{.Name}}, this is a courtesy call about your account ending {{.AccountLast4}}."

MINIMUM ACCEPTABLE PAYMENT: {{printf "%.2f" .HalfAmount}} (half the amount due).

CONVERSATION STEPS:
1. State that the payment of {{printf "%.2f" .AmountDue}} is {{.DaysPastDue}} days past due.
2. Ask when the customer can make the payment.
3. If a date is given, confirm the date and amount back to the customer.
4. If the customer cannot pay in full, offer the half-amount option of {{printf "%.2f" .HalfAmount}}.

NEGOTIATION RULES:
- First response to "I can't pay": offer the half-amount option once.
- Never accept a promise below {{printf "%.2f" .HalfAmount}}.
- Never offer to waive fees.

RESPONSES MUST BE:
- Short, one or two sentences.
- Calm and free of pressure language.
`,
	},
	{
		id:          "predue-reminder",
		hasGreeting: true,
		text: `You are a pre-due payment reminder assistant.

INITIAL GREETING (MUST BE SAID FIRST WHEN CALL CONNECTS):
"Hello {{.Name}}, this is a reminder about your upcoming payment on account ending {{.AccountLast4}}."

CONVERSATION STEPS:
1. Remind the customer that {{printf "%.2f" .AmountDue}} is due in {{.DaysUntilDue}} days.
2. Ask whether they expect any difficulty making the payment.
3. If yes, note the reason and suggest they call support before the due date.

RESPONSES MUST BE:
- Brief and friendly.
- Free of any collection or consequence language.
`,
	},
}

// Catalog resolves agent ids to rendered conversation briefs.
type Catalog struct {
	base   *template.Template
	agents map[string]*template.Template
	greets map[string]bool
}

// NewCatalog builds a catalog from the built-in personas.
func NewCatalog() (*Catalog, error) {
	base, err := template.New("base").Parse(baseBrief)
	if err != nil {
		return nil, fmt.Errorf("parsing base brief: %w", err)
	}
	c := &Catalog{
		base:   base,
		agents: make(map[string]*template.Template),
		greets: make(map[string]bool),
	}
	for _, p := range builtinPersonas {
		tmpl, err := template.New(p.id).Parse(p.text)
		if err != nil {
			return nil, fmt.Errorf("parsing persona %s: %w", p.id, err)
		}
		c.agents[p.id] = tmpl
		c.greets[p.id] = p.hasGreeting
	}
	return c, nil
}

// Resolve renders the full brief for an agent id. Unknown or empty agent ids
// fall back to the compliance base alone.
func (c *Catalog) Resolve(agentID string, cust Customer) (string, error) {
	data := briefData{
		Customer:   cust,
		HalfAmount: cust.AmountDue / 2,
	}
	if data.Name == "" {
		data.Name = "Customer"
	}
	if data.AccountLast4 == "" {
		data.AccountLast4 = "0000"
	}

	agentID = strings.TrimSpace(agentID)
	agentTmpl, known := c.agents[agentID]
	data.SkipGreeting = known && c.greets[agentID]

	var b strings.Builder
	if err := c.base.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering base brief: %w", err)
	}
	if known {
		b.WriteString("\n")
		if err := agentTmpl.Execute(&b, data); err != nil {
			return "", fmt.Errorf("rendering persona %s: %w", agentID, err)
		}
	}
	return b.String(), nil
}

// Agents lists the known persona ids in sorted order.
func (c *Catalog) Agents() []string {
	ids := make([]string, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
