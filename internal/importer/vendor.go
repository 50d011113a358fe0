package importer

import (
	"regexp"
	"strings"
)

// vendorPatterns pull a vendor name out of common description shapes:
// "AWS - Monthly Bill", "Payment to Acme Corp", "Slack Subscription".
var vendorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^([A-Z][A-Za-z\s&]+?)(?:\s*-|\s+\d|\s+Monthly|\s+Bill|$)`),
	regexp.MustCompile(`(?:Payment to|From)\s+([A-Z][A-Za-z\s&]+)`),
	regexp.MustCompile(`^([A-Z][A-Za-z\s&]+?)\s+(?:Subscription|Plan|Service)`),
}

var spaceRun = regexp.MustCompile(`\s+`)

// ExtractVendor derives a vendor name from a transaction description when
// the source file has no Vendor column. Deterministic; falls back to the
// leading words of the description.
func ExtractVendor(description string) string {
	for _, pat := range vendorPatterns {
		if m := pat.FindStringSubmatch(description); m != nil {
			vendor := spaceRun.ReplaceAllString(strings.TrimSpace(m[1]), " ")
			if len(vendor) > 3 {
				return vendor
			}
		}
	}

	words := strings.Fields(description)
	if len(words) >= 2 {
		return words[0] + " " + words[1]
	}
	if len(description) > 30 {
		return description[:30]
	}
	return description
}
