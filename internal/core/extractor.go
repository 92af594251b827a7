package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/mikey/payment-tracker/internal/utils"
)

// Extractor turns raw emails into normalized payment records using a fixed
// rule table. It has no side effects beyond logging; the clock is injected
// so extraction is a pure function of its inputs plus the current time.
type Extractor struct {
	table  []ServiceRule
	text   *utils.TextProcessor
	logger *zap.Logger
	now    func() time.Time
}

// NewExtractor creates a new extractor over the given rule table.
func NewExtractor(table []ServiceRule, text *utils.TextProcessor, logger *zap.Logger) *Extractor {
	return &Extractor{
		table:  table,
		text:   text,
		logger: logger,
		now:    time.Now,
	}
}

// Extract parses one raw email. It returns OutcomeNotRecognized when the
// sender matches no rule and OutcomeUnparsed when a recognized sender's body
// yields no valid amount. Neither is an error; both are expected inbox noise.
func (e *Extractor) Extract(raw *RawEmail) (*Payment, Outcome) {
	rule, ok := MatchRule(e.table, raw.From)
	if !ok {
		e.logger.Debug("Sender matched no service rule",
			zap.String("from", raw.From),
			zap.String("message_id", raw.MessageID))
		return nil, OutcomeNotRecognized
	}

	texts := e.candidateTexts(raw)
	if len(texts) == 0 {
		e.logger.Info("Recognized sender with empty body",
			zap.String("service", string(rule.Service)),
			zap.String("message_id", raw.MessageID))
		return nil, OutcomeUnparsed
	}

	amount, code, err := e.extractAmount(rule, texts)
	if err != nil {
		e.logger.Info("Recognized sender but no parseable amount",
			zap.String("service", string(rule.Service)),
			zap.String("message_id", raw.MessageID),
			zap.String("reason", err.Error()))
		return nil, OutcomeUnparsed
	}

	name := e.extractSenderName(rule, texts)
	if name == "" {
		name = subjectFragment(raw.Subject)
	}

	now := e.now()
	payment := &Payment{
		Service:     rule.Service,
		SenderName:  name,
		Amount:      amount,
		Currency:    code,
		EmailDate:   raw.ReceivedAt,
		DaysAgo:     humanizeAge(now, raw.ReceivedAt),
		Subject:     raw.Subject,
		MessageID:   raw.MessageID,
		FromEmail:   raw.From,
		ToEmail:     raw.To,
		ExtractedAt: now,
	}

	e.logger.Info("Extracted payment",
		zap.String("service", string(rule.Service)),
		zap.String("sender", name),
		zap.String("amount", amount.String()),
		zap.String("currency", code),
		zap.String("message_id", raw.MessageID))

	return payment, OutcomeExtracted
}

// candidateTexts returns the texts to scan, plain body first and an
// HTML-stripped rendering second. The subject is prepended to each because
// some services put the amount only there.
func (e *Extractor) candidateTexts(raw *RawEmail) []string {
	texts := make([]string, 0, 2)
	if strings.TrimSpace(raw.Body) != "" {
		texts = append(texts, strings.TrimSpace(raw.Subject+" "+raw.Body))
	}
	if strings.TrimSpace(raw.HTMLBody) != "" {
		stripped := e.text.NormalizeBody(raw.HTMLBody)
		if stripped != "" {
			texts = append(texts, strings.TrimSpace(raw.Subject+" "+stripped))
		}
	}
	return texts
}

// extractAmount scans the candidate texts with the rule's amount patterns.
// A disallowed currency fails the extraction outright; a malformed numeric
// group just moves on to the next pattern.
func (e *Extractor) extractAmount(rule ServiceRule, texts []string) (decimal.Decimal, string, error) {
	var lastErr error
	for _, text := range texts {
		for _, re := range rule.AmountPatterns {
			groups := matchGroups(re, text)
			if groups == nil {
				continue
			}

			code := strings.ToUpper(groups["cur"])
			if _, err := currency.ParseISO(code); err != nil {
				lastErr = fmt.Errorf("captured currency %q is not ISO 4217", code)
				continue
			}
			if !rule.AllowsCurrency(code) {
				return decimal.Zero, "", fmt.Errorf("currency %s not allowed for %s", code, rule.Service)
			}

			amount, err := parseAmount(groups["amount"])
			if err != nil {
				lastErr = err
				continue
			}
			return amount, code, nil
		}
	}
	if lastErr != nil {
		return decimal.Zero, "", lastErr
	}
	return decimal.Zero, "", fmt.Errorf("no amount pattern matched")
}

func (e *Extractor) extractSenderName(rule ServiceRule, texts []string) string {
	for _, text := range texts {
		for _, re := range rule.NamePatterns {
			groups := matchGroups(re, text)
			if groups == nil {
				continue
			}
			name := cleanName(groups["name"])
			if len(name) >= 3 {
				return name
			}
		}
	}
	return ""
}

// parseAmount normalizes thousands separators and converts to decimal.
func parseAmount(s string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(s, ",", "")
	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	return amount, nil
}

var nameSpaceRe = regexp.MustCompile(`\s+`)

func cleanName(s string) string {
	s = nameSpaceRe.ReplaceAllString(s, " ")
	return strings.Trim(s, ".,- ")
}

// subjectFragment falls back to a short slice of the subject when no name
// pattern matched.
func subjectFragment(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Unknown"
	}
	runes := []rune(subject)
	if len(runes) > 48 {
		return string(runes[:48])
	}
	return subject
}

// humanizeAge buckets the age of an email into Today / Yesterday /
// "N days ago" / "N months ago". Month boundaries use calendar arithmetic,
// not fixed 30-day division.
func humanizeAge(now, then time.Time) string {
	then = then.In(now.Location())
	if then.After(now) {
		return "Today"
	}

	ny, nm, nd := now.Date()
	ty, tm, td := then.Date()
	if ny == ty && nm == tm && nd == td {
		return "Today"
	}

	yy, ym, yd := now.AddDate(0, 0, -1).Date()
	if yy == ty && ym == tm && yd == td {
		return "Yesterday"
	}

	months := 0
	for !then.AddDate(0, months+1, 0).After(now) {
		months++
	}
	if months >= 1 {
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	}

	// Day count is by calendar date, not elapsed hours; two calendar days
	// back is "2 days ago" even when under 48h have elapsed.
	nowDay := time.Date(ny, nm, nd, 0, 0, 0, 0, now.Location())
	thenDay := time.Date(ty, tm, td, 0, 0, 0, 0, now.Location())
	days := int((nowDay.Sub(thenDay) + 12*time.Hour) / (24 * time.Hour))
	return fmt.Sprintf("%d days ago", days)
}

func matchGroups(re *regexp.Regexp, text string) map[string]string {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i > 0 && name != "" {
			groups[name] = match[i]
		}
	}
	return groups
}
