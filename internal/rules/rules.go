// Package rules holds the built-in service rule table. The matching and
// parsing machinery lives in internal/core; this package is the data.
package rules

import (
	"regexp"
	"strings"

	"github.com/mikey/payment-tracker/internal/core"
)

const amountGroup = `(?P<amount>[0-9][0-9,]*(?:\.[0-9]+)?)`

var (
	sentYouAmount = regexp.MustCompile(`(?i)has sent you\s+` + amountGroup + `\s+(?P<cur>[A-Za-z]{3})\b`)
	amountThenCur = regexp.MustCompile(`(?i)` + amountGroup + `\s*(?P<cur>USD|PHP|EUR|GBP|CAD)\b`)
	curThenAmount = regexp.MustCompile(`(?i)\b(?P<cur>USD|PHP|EUR|GBP|CAD)\s*` + amountGroup)

	helloSentYou = regexp.MustCompile(`(?i)hello [^,]+,\s*(?P<name>[A-Za-z0-9 .,'&()-]+?)\s+has sent you`)
	nameSentYou  = regexp.MustCompile(`(?i)(?P<name>[A-Za-z0-9 .'&()-]+?)\s+(?:has sent you|sent you|paid you|wants to pay)`)
	fromName     = regexp.MustCompile(`(?i)\bfrom\s+(?P<name>[A-Za-z][A-Za-z0-9 .'&-]{1,60})`)
	gotPaidBy    = regexp.MustCompile(`(?i)you got paid by\s+(?P<name>[A-Za-z0-9 .'&()-]+)`)
)

func currencySet(codes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Default returns the built-in rule table in priority order.
func Default() []core.ServiceRule {
	return []core.ServiceRule{
		{
			Service:        core.ServiceWise,
			SenderPattern:  "wise.com",
			AmountPatterns: []*regexp.Regexp{sentYouAmount, amountThenCur, curThenAmount},
			NamePatterns:   []*regexp.Regexp{helloSentYou, fromName, nameSentYou},
			Currencies:     currencySet("USD", "PHP", "EUR", "GBP", "CAD"),
		},
		{
			Service:        core.ServicePaypal,
			SenderPattern:  "paypal.com",
			AmountPatterns: []*regexp.Regexp{amountThenCur, curThenAmount},
			NamePatterns:   []*regexp.Regexp{gotPaidBy, nameSentYou, fromName},
			Currencies:     currencySet("USD", "EUR", "GBP", "CAD"),
		},
		{
			Service:        core.ServiceRemitly,
			SenderPattern:  "remitly.com",
			AmountPatterns: []*regexp.Regexp{sentYouAmount, amountThenCur, curThenAmount},
			NamePatterns:   []*regexp.Regexp{helloSentYou, fromName, nameSentYou},
			Currencies:     currencySet("USD", "PHP"),
		},
		{
			Service:        core.ServiceBillcom,
			SenderPattern:  "bill.com",
			AmountPatterns: []*regexp.Regexp{amountThenCur, curThenAmount},
			NamePatterns:   []*regexp.Regexp{nameSentYou, fromName},
			Currencies:     currencySet("USD"),
		},
	}
}

// WithSenders returns a copy of the table with per-service sender pattern
// overrides applied. Keys are lowercase service names as used in config.
func WithSenders(table []core.ServiceRule, overrides map[string]string) []core.ServiceRule {
	if len(overrides) == 0 {
		return table
	}
	out := make([]core.ServiceRule, len(table))
	copy(out, table)
	for i := range out {
		key := strings.ToLower(string(out[i].Service))
		if pattern, ok := overrides[key]; ok && pattern != "" {
			out[i].SenderPattern = pattern
		}
	}
	return out
}

// SenderPatterns returns the table's sender patterns in priority order,
// for use as a mailbox allowlist.
func SenderPatterns(table []core.ServiceRule) []string {
	patterns := make([]string, 0, len(table))
	for _, rule := range table {
		patterns = append(patterns, rule.SenderPattern)
	}
	return patterns
}
