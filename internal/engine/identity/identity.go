// Package identity canonicalizes contact fields (email, phone, company name)
// so the duplicate detector compares like with like.
package identity

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/nyaruka/phonenumbers"
)

// defaultRegion is used when a phone number carries no country prefix.
const defaultRegion = "IN"

// legal suffixes stripped from company names before comparison, so
// "Acme Pvt Ltd" and "acme" match.
var companySuffixes = []string{
	"private limited", "pvt ltd", "pvt. ltd.", "pvt", "ltd", "llp", "llc",
	"inc", "corp", "gmbh", "bv", "co",
}

// NormalizeEmail lower-cases and trims an email address. An empty result
// means no usable signal.
func NormalizeEmail(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// NormalizePhone reduces a phone number to its digits. Numbers that parse as
// valid are first formatted to E.164 so "+91 98765-43210" and "09876543210"
// compare equal regardless of formatting.
func NormalizePhone(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if number, err := phonenumbers.Parse(trimmed, defaultRegion); err == nil && phonenumbers.IsValidNumber(number) {
		trimmed = phonenumbers.Format(number, phonenumbers.E164)
	}

	var b strings.Builder
	for _, r := range trimmed {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCompany lower-cases a company name, collapses whitespace, and
// strips trailing legal suffixes.
func NormalizeCompany(input string) string {
	name := strings.ToLower(strings.TrimSpace(input))
	if name == "" {
		return ""
	}

	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ".,")

	for _, suffix := range companySuffixes {
		if strings.HasSuffix(name, " "+suffix) {
			name = strings.TrimSpace(strings.TrimSuffix(name, " "+suffix))
			break
		}
	}
	return name
}

// Ratio returns a Levenshtein similarity ratio in [0,1]. Two empty strings
// are not similar: absence of a field is no evidence of identity.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	distance := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(distance)/float64(longest)
}
