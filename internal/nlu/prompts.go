package nlu

import (
	"fmt"
	"strings"
)

// buildExtractionPrompt asks the model for a single JSON object describing the
// card approval in message. year is offered as a hint because the messages
// never carry one.
func buildExtractionPrompt(message string, knownVendors []string, year int) string {
	var b strings.Builder

	b.WriteString("You are a parser for Korean card approval SMS notifications.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Extract the single card payment described by the message below.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output exactly one JSON object.\n\n")

	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"vendor\": string or null, the card issuer code\n")
	b.WriteString("- \"occurred_at\": string, \"YYYY-MM-DD HH:MM\" (24h clock)\n")
	b.WriteString("- \"amount\": integer, the approved amount in KRW without separators\n")
	b.WriteString("- \"merchant_name\": string, the merchant exactly as written\n\n")

	b.WriteString("Rules:\n")
	if len(knownVendors) > 0 {
		fmt.Fprintf(&b, "- Known vendor codes: %s. Use one of them when the issuer matches.\n", strings.Join(knownVendors, ", "))
	}
	b.WriteString("- If the issuer cannot be identified, set \"vendor\" to null.\n")
	fmt.Fprintf(&b, "- The message has no year; use %d unless the message states otherwise.\n", year)
	b.WriteString("- Do not include running totals, remaining limits or balances in \"merchant_name\".\n")
	b.WriteString("- Amounts are whole won; never output decimals.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n\n")

	b.WriteString("Message:\n")
	b.WriteString(message)
	b.WriteString("\n")

	return b.String()
}
