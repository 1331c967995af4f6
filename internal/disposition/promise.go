package disposition

import (
	"regexp"
	"strconv"
	"strings"
)

// PaymentPromise is an opportunistic extraction from a promising turn: how
// much the customer committed to and for when, in the customer's own words.
type PaymentPromise struct {
	Amount       float64 `json:"amount"`
	PromisedDate string  `json:"promised_date"`
}

var amountPattern = regexp.MustCompile(`\$\s?(\d+(?:,\d{3})*(?:\.\d{1,2})?)|\b(\d+(?:,\d{3})*(?:\.\d{1,2})?)\s*(?:dollars|bucks)\b`)

// ExtractPromise pulls a payment amount and promised-date reference out of a
// customer turn. Returns nil when the turn carries neither a recognizable
// amount nor a date reference alongside a commitment.
func ExtractPromise(text string) *PaymentPromise {
	lower := strings.ToLower(text)

	committed := len(matchKeywords(lower, paymentClaimKeywords)) > 0 ||
		len(matchKeywords(lower, promiseKeywords)) > 0
	if !committed {
		return nil
	}

	p := &PaymentPromise{}
	if m := amountPattern.FindStringSubmatch(lower); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		raw = strings.ReplaceAll(raw, ",", "")
		if amt, err := strconv.ParseFloat(raw, 64); err == nil {
			p.Amount = amt
		}
	}

	if d, ok := explicitDate(lower); ok {
		p.PromisedDate = d
	} else if near := matchKeywords(lower, nearTermKeywords); len(near) > 0 {
		p.PromisedDate = near[0]
	} else if far := matchKeywords(lower, farTermKeywords); len(far) > 0 {
		p.PromisedDate = far[0]
	}

	if p.Amount == 0 && p.PromisedDate == "" {
		return nil
	}
	return p
}
