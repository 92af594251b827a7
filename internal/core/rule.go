package core

import (
	"regexp"
	"strings"
)

// ServiceRule describes how to recognize and parse one payment service's
// notification emails. Rules are compiled once at process start and never
// mutated; adding a service is a data change, not a code change.
type ServiceRule struct {
	Service       Service
	SenderPattern string
	// AmountPatterns capture a numeric amount and a 3-letter currency code
	// in the named groups "amount" and "cur".
	AmountPatterns []*regexp.Regexp
	// NamePatterns capture the paying counterparty in the named group "name".
	NamePatterns []*regexp.Regexp
	Currencies   map[string]struct{}
}

// MatchesSender reports whether the rule recognizes the given From address,
// by case-insensitive substring or domain-suffix match.
func (r ServiceRule) MatchesSender(from string) bool {
	addr := strings.ToLower(from)
	pattern := strings.ToLower(r.SenderPattern)

	if strings.Contains(addr, pattern) {
		return true
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	domain := strings.TrimSuffix(addr[at+1:], ">")
	return domain == pattern || strings.HasSuffix(domain, "."+pattern)
}

// AllowsCurrency reports whether the code is in the rule's whitelist.
func (r ServiceRule) AllowsCurrency(code string) bool {
	_, ok := r.Currencies[strings.ToUpper(code)]
	return ok
}

// MatchRule returns the first rule recognizing the From address. Rules are
// tried in slice order, so the table's order is the priority order.
func MatchRule(table []ServiceRule, from string) (ServiceRule, bool) {
	for _, rule := range table {
		if rule.MatchesSender(from) {
			return rule, true
		}
	}
	return ServiceRule{}, false
}
