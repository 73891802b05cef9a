package translate

import "strings"

// Rule protects a term from machine translation: any text containing
// Pattern (case-insensitive) resolves to Canonical for every target locale.
type Rule struct {
	Pattern   string
	Canonical string
}

// DefaultRules returns the built-in protected terms.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "lingo.dev", Canonical: "Lingo.dev"},
		{Pattern: "hackathon", Canonical: "Hackathon"},
	}
}

// Glossary is a small fixed rule set checked before cache and backend.
type Glossary struct {
	rules []Rule
}

// NewGlossary creates a glossary. With no rules the default set applies.
func NewGlossary(rules ...Rule) *Glossary {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Glossary{rules: rules}
}

// Match returns the canonical form for the first rule whose pattern occurs
// in text, case-insensitively.
func (g *Glossary) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, r := range g.rules {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Canonical, true
		}
	}
	return "", false
}
