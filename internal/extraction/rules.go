package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-sms-parser/internal/domain"
)

// Capture group names every vendor pattern must define.
const (
	groupDate     = "date"     // MM/DD
	groupTime     = "time"     // HH:MM
	groupAmount   = "amount"   // digits with thousands separators
	groupMerchant = "merchant" // rest of the line
)

// occurredAtLayout is applied to "<year>/<MM/DD> <HH:MM>".
const occurredAtLayout = "2006/01/02 15:04"

// Option configures a RuleExtractor.
type Option func(*RuleExtractor)

// WithClock overrides the clock used to infer the year of a message.
func WithClock(now func() time.Time) Option {
	return func(e *RuleExtractor) {
		if now != nil {
			e.now = now
		}
	}
}

// RuleExtractor parses one vendor's fixed approval message format.
// It holds no mutable state after construction and is safe for concurrent use.
type RuleExtractor struct {
	vendor        string
	keywords      []string
	pattern       *regexp.Regexp
	cleanMerchant bool
	now           func() time.Time
}

func newRuleExtractor(vendor string, keywords []string, pattern *regexp.Regexp, cleanMerchant bool, opts ...Option) *RuleExtractor {
	for _, name := range []string{groupDate, groupTime, groupAmount, groupMerchant} {
		if pattern.SubexpIndex(name) < 0 {
			panic(fmt.Sprintf("extraction: %s pattern has no %q group", vendor, name))
		}
	}
	e := &RuleExtractor{
		vendor:        vendor,
		keywords:      keywords,
		pattern:       pattern,
		cleanMerchant: cleanMerchant,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Vendor implements VendorExtractor.
func (e *RuleExtractor) Vendor() string {
	return e.vendor
}

// MatchesVendor implements VendorExtractor.
func (e *RuleExtractor) MatchesVendor(text string) bool {
	if text == "" {
		return false
	}
	for _, kw := range e.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Extract implements VendorExtractor.
func (e *RuleExtractor) Extract(_ context.Context, text string) (*domain.ExpenditureRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	m := e.pattern.FindStringSubmatch(text)
	if m == nil {
		return nil, e.fail(text, "pattern did not match")
	}
	group := func(name string) string {
		return m[e.pattern.SubexpIndex(name)]
	}

	amount, err := parseAmount(group(groupAmount))
	if err != nil {
		return nil, e.fail(text, err.Error())
	}

	occurredAt, err := e.occurredAt(group(groupDate), group(groupTime))
	if err != nil {
		return nil, e.fail(text, err.Error())
	}

	merchant := strings.TrimSpace(group(groupMerchant))
	if e.cleanMerchant {
		merchant = CleanMerchantName(merchant)
	}

	return &domain.ExpenditureRecord{
		Vendor:       e.vendor,
		OccurredAt:   occurredAt,
		Amount:       amount,
		MerchantName: merchant,
	}, nil
}

// occurredAt assumes the message belongs to the clock's current year.
// A December message processed in January is misdated by this rule.
func (e *RuleExtractor) occurredAt(monthDay, hourMinute string) (civil.DateTime, error) {
	year := e.now().Year()
	t, err := time.Parse(occurredAtLayout, fmt.Sprintf("%04d/%s %s", year, monthDay, hourMinute))
	if err != nil {
		return civil.DateTime{}, fmt.Errorf("invalid date-time %q %q", monthDay, hourMinute)
	}
	return civil.DateTimeOf(t), nil
}

func (e *RuleExtractor) fail(text, reason string) error {
	return &ExtractionError{Vendor: e.vendor, Input: text, Reason: reason}
}

// parseAmount strips thousands separators and requires a positive integer.
func parseAmount(raw string) (int64, error) {
	digits := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("amount %q is not positive", raw)
	}
	return n, nil
}

// DefaultExtractors returns the registered vendor extractors in probing order.
func DefaultExtractors(opts ...Option) []VendorExtractor {
	return []VendorExtractor{
		NewKBExtractor(opts...),
		NewNHExtractor(opts...),
		NewSHExtractor(opts...),
	}
}
