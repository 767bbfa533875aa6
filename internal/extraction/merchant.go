package extraction

import (
	"regexp"
	"strings"
)

// accumulationMarker matches the running-total annotations some issuers
// append after the merchant name.
var accumulationMarker = regexp.MustCompile(`총누적|누적|잔여|잔액`)

// CleanMerchantName trims name and drops everything from the first
// accumulation marker onward. Applying it twice gives the same result.
func CleanMerchantName(name string) string {
	if loc := accumulationMarker.FindStringIndex(name); loc != nil {
		name = name[:loc[0]]
	}
	return strings.TrimSpace(name)
}
