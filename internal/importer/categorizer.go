package importer

import "strings"

// CategoryUncategorized is assigned when no rule matches.
const CategoryUncategorized = "Uncategorized"

// CategoryRule maps keywords to a category. Rules are data, not control
// flow, so the set can be extended without touching the matcher.
type CategoryRule struct {
	Category string
	Keywords []string
}

// defaultRules covers the categories the surrounding product tracks.
// Order breaks ties between keywords of equal length.
func defaultRules() []CategoryRule {
	return []CategoryRule{
		{Category: "Salaries", Keywords: []string{"salary", "payroll", "wages", "compensation"}},
		{Category: "Cloud Services", Keywords: []string{"aws", "azure", "google cloud", "gcp", "digitalocean", "heroku", "cloud"}},
		{Category: "Software", Keywords: []string{"github", "slack", "figma", "notion", "zoom", "subscription", "saas"}},
		{Category: "Marketing", Keywords: []string{"ads", "advertising", "marketing", "campaign", "seo", "social media"}},
		{Category: "Office", Keywords: []string{"rent", "office", "utilities", "electricity", "internet", "cleaning"}},
		{Category: "Professional Services", Keywords: []string{"legal", "accounting", "consultant", "lawyer"}},
		{Category: "HR", Keywords: []string{"recruitment", "training", "team building", "hiring"}},
		{Category: "Contractors", Keywords: []string{"freelance", "contractor"}},
		{Category: "Revenue", Keywords: []string{"payment", "revenue", "income", "client"}},
	}
}

// Categorizer assigns categories by keyword substring match over description
// and vendor text. Deterministic and side-effect free: the longest matching
// keyword wins, ties go to the earlier rule.
type Categorizer struct {
	rules []CategoryRule
}

// NewCategorizer returns a categorizer with the default rule set.
func NewCategorizer() *Categorizer {
	return &Categorizer{rules: defaultRules()}
}

// NewCategorizerWithRules returns a categorizer using custom rules.
func NewCategorizerWithRules(rules []CategoryRule) *Categorizer {
	return &Categorizer{rules: rules}
}

// Categorize maps (description, vendor) to a category string.
// Returns CategoryUncategorized when nothing matches.
func (c *Categorizer) Categorize(description, vendor string) string {
	haystack := strings.ToLower(description + " " + vendor)

	best := ""
	bestLen := 0
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if len(kw) > bestLen && strings.Contains(haystack, kw) {
				best = rule.Category
				bestLen = len(kw)
			}
		}
	}

	if best == "" {
		return CategoryUncategorized
	}
	return best
}
