package extraction

import (
	"regexp"

	"github.com/dvloznov/card-sms-parser/internal/domain"
)

// NH messages carry a masked card number, the holder and an optional
// 일시불 token between the amount and the date, and may end with a running
// total:
//
//	NH농협카드5*5승인 가나다 5,700원 일시불 10/21 08:33 (주)티머니 개인택 총누적1,000,000원
var nhPattern = regexp.MustCompile(
	`승인[\s\S]*?(?P<amount>\d[\d,]*)원[\s\S]*?(?P<date>\d{2}/\d{2})\s+(?P<time>\d{2}:\d{2})\s*(?P<merchant>.*)`,
)

var nhKeywords = []string{"NH농협", "농협카드"}

// NewNHExtractor returns the rule-based extractor for NH Nonghyup Card.
func NewNHExtractor(opts ...Option) *RuleExtractor {
	return newRuleExtractor(domain.VendorNH, nhKeywords, nhPattern, true, opts...)
}
