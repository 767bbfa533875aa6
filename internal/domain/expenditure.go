package domain

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// Vendor codes for the card issuers we know how to parse.
const (
	VendorKB      = "KB"
	VendorNH      = "NH"
	VendorSH      = "SH"
	VendorUnknown = "UNKNOWN"
)

// ExpenditureRecord represents one card approval extracted from an SMS body.
// It is not a ledger row; the expenditure service maps it onto its own schema.
type ExpenditureRecord struct {
	Vendor       string         `json:"vendor"`        // issuer code, or UNKNOWN
	OccurredAt   civil.DateTime `json:"occurred_at"`   // messages carry no year, see extraction
	Amount       int64          `json:"amount"`        // KRW, separators removed
	MerchantName string         `json:"merchant_name"` // trimmed, may be empty
}

// Validate checks the record invariants. MerchantName is allowed to be empty.
func (r *ExpenditureRecord) Validate() error {
	if r == nil {
		return errors.New("expenditure record is nil")
	}
	if strings.TrimSpace(r.Vendor) == "" {
		return errors.New("vendor is empty")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", r.Amount)
	}
	if !r.OccurredAt.IsValid() {
		return fmt.Errorf("occurred_at %q is not a valid date-time", r.OccurredAt.String())
	}
	return nil
}
