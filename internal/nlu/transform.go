package nlu

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-sms-parser/internal/domain"
)

// Layouts accepted for "occurred_at". The year-less ones take the year from
// the extractor's clock.
var (
	fullLayouts     = []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05"}
	yearlessLayouts = []string{"01-02 15:04", "01-02T15:04", "01-02 15:04:05", "01-02T15:04:05"}
)

// transformModelOutputToRecord maps the validated model object onto a record.
func transformModelOutputToRecord(obj map[string]any, year int) (*domain.ExpenditureRecord, error) {
	occurredAtStr, err := getStringField(obj, "occurred_at", true)
	if err != nil {
		return nil, fmt.Errorf("transformModelOutputToRecord: %w", err)
	}
	occurredAt, err := parseOccurredAt(occurredAtStr, year)
	if err != nil {
		return nil, fmt.Errorf("transformModelOutputToRecord: %w", err)
	}

	amount, err := getAmountField(obj, "amount")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutputToRecord: %w", err)
	}

	vendorPtr, err := getOptionalStringField(obj, "vendor")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutputToRecord: %w", err)
	}
	merchantPtr, err := getOptionalStringField(obj, "merchant_name")
	if err != nil {
		return nil, fmt.Errorf("transformModelOutputToRecord: %w", err)
	}

	merchant := ""
	if merchantPtr != nil {
		merchant = *merchantPtr
	}

	return &domain.ExpenditureRecord{
		Vendor:       normalizeVendor(vendorPtr),
		OccurredAt:   occurredAt,
		Amount:       amount,
		MerchantName: merchant,
	}, nil
}

// normalizeVendor upper-cases the reported code and maps missing or
// placeholder values to UNKNOWN.
func normalizeVendor(v *string) string {
	if v == nil {
		return domain.VendorUnknown
	}
	code := strings.ToUpper(strings.TrimSpace(*v))
	switch code {
	case "", "NULL", "NONE", "N/A", domain.VendorUnknown:
		return domain.VendorUnknown
	}
	return code
}

func parseOccurredAt(s string, year int) (civil.DateTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range fullLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateTimeOf(t.Truncate(time.Minute)), nil
		}
	}
	for _, layout := range yearlessLayouts {
		// Parse with the year prepended so 02-29 is checked against the right year.
		if t, err := time.Parse("2006-"+layout, fmt.Sprintf("%04d-%s", year, s)); err == nil {
			return civil.DateTimeOf(t.Truncate(time.Minute)), nil
		}
	}
	return civil.DateTime{}, fmt.Errorf("invalid occurred_at %q", s)
}

func getStringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]any, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

// getAmountField accepts an integer or a numeric string such as "5,700원".
func getAmountField(m map[string]any, key string) (int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required field %q", key)
	}

	var n int64
	var err error
	switch val := v.(type) {
	case json.Number:
		n, err = val.Int64()
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("field %q is not a whole number: %v", key, val)
		}
		n = int64(val)
	case string:
		digits := strings.NewReplacer(",", "", "원", "", " ", "").Replace(val)
		n, err = strconv.ParseInt(digits, 10, 64)
	default:
		return 0, fmt.Errorf("field %q has type %T, want integer", key, v)
	}
	if err != nil {
		return 0, fmt.Errorf("field %q: invalid amount %v: %w", key, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("field %q must be positive, got %d", key, n)
	}
	return n, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
