package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Gate is a single, independent compliance check. Implementations must be
// stateless and side-effect free: identical input yields identical output.
type Gate interface {
	Name() string
	Evaluate(text, documentType string) GateResult
}

// FuncGate adapts a plain function into a Gate.
type FuncGate struct {
	GateName string
	Fn       func(text, documentType string) GateResult
}

func (g FuncGate) Name() string { return g.GateName }

func (g FuncGate) Evaluate(text, documentType string) GateResult {
	return g.Fn(text, documentType)
}

// RegexGate checks a document for the presence (or required absence) of a
// pattern. The rule body is data: pattern, severity, message and metadata are
// all supplied by the ruleset, not hardcoded here.
type RegexGate struct {
	GateName    string
	Pattern     *regexp.Regexp
	WantMatch   bool // true: pattern must be present; false: must be absent
	Severity    Severity
	Message     string
	LegalSource string
	Suggestion  string
	Source      string
	Category    string
	AppliesTo   []string // document types the gate applies to; empty = all
}

// NewRegexGate compiles pattern and builds a RegexGate. The pattern is compiled
// case-insensitively; rule text is written against lowercased documents.
func NewRegexGate(name, pattern string, wantMatch bool, severity Severity, message string) (*RegexGate, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("policy: gate %s: %w", name, err)
	}
	return &RegexGate{
		GateName:  name,
		Pattern:   re,
		WantMatch: wantMatch,
		Severity:  severity,
		Message:   message,
	}, nil
}

func (g *RegexGate) Name() string { return g.GateName }

func (g *RegexGate) Evaluate(text, documentType string) GateResult {
	if len(g.AppliesTo) > 0 && !contains(g.AppliesTo, documentType) {
		return GateResult{
			Status:   StatusNotApplicable,
			Severity: SeverityNone,
			Message:  fmt.Sprintf("gate %s does not apply to %s documents", g.GateName, documentType),
			Source:   g.Source,
			Category: g.Category,
		}
	}

	matched := g.Pattern.MatchString(text)
	if matched == g.WantMatch {
		return GateResult{
			Status:   StatusPass,
			Severity: SeverityNone,
			Message:  fmt.Sprintf("gate %s satisfied", g.GateName),
			Source:   g.Source,
			Category: g.Category,
		}
	}
	return GateResult{
		Status:      StatusFail,
		Severity:    g.Severity,
		Message:     g.Message,
		LegalSource: g.LegalSource,
		Suggestion:  g.Suggestion,
		Source:      g.Source,
		Category:    g.Category,
	}
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}
