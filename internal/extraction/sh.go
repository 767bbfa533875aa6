package extraction

import (
	"regexp"

	"github.com/dvloznov/card-sms-parser/internal/domain"
)

// Shinhan puts the card suffix in parentheses and glues the installment
// marker to the date:
//
//	신한카드(6193)승인 가나다 5,700원(일시불)10/21 08:33 (주)티머니 개인택 누적1,000,000원
var shPattern = regexp.MustCompile(
	`승인[\s\S]*?(?P<amount>\d[\d,]*)원(?:\([^)\n]*\))?\s*(?P<date>\d{2}/\d{2})\s+(?P<time>\d{2}:\d{2})\s*(?P<merchant>.*)`,
)

var shKeywords = []string{"신한카드"}

// NewSHExtractor returns the rule-based extractor for Shinhan Card.
func NewSHExtractor(opts ...Option) *RuleExtractor {
	return newRuleExtractor(domain.VendorSH, shKeywords, shPattern, true, opts...)
}
