package extraction

import (
	"regexp"

	"github.com/dvloznov/card-sms-parser/internal/domain"
)

// KB messages put the date and time before the approval token:
//
//	[KB국민카드] 06/12 10:20 승인 11,000원 스타벅스
var kbPattern = regexp.MustCompile(
	`(?P<date>\d{2}/\d{2})\s+(?P<time>\d{2}:\d{2})[\s\S]*?승인\s*(?P<amount>\d[\d,]*)원\s*(?P<merchant>.*)`,
)

var kbKeywords = []string{"KB국민", "국민카드"}

// NewKBExtractor returns the rule-based extractor for KB Kookmin Card.
// KB bodies end with the merchant, so the merchant text is kept as sent.
func NewKBExtractor(opts ...Option) *RuleExtractor {
	return newRuleExtractor(domain.VendorKB, kbKeywords, kbPattern, false, opts...)
}
