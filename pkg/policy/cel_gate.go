package policy

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// CELGate evaluates a CEL predicate over document facts. The expression is
// compiled once at construction; evaluation is pure and allocation-light.
//
// The CEL environment exposes a single `document` variable:
//
//	document.text   - the raw document text
//	document.lower  - lowercased text, for case-insensitive rules
//	document.type   - the document type tag
//	document.length - text length in bytes
type CELGate struct {
	GateName    string
	Expr        string
	Severity    Severity
	Message     string
	LegalSource string
	Suggestion  string
	Source      string
	Category    string

	program cel.Program
}

// NewCELGate compiles expr into a gate that FAILs when the predicate is false.
func NewCELGate(name, expr string, severity Severity, message string) (*CELGate, error) {
	env, err := cel.NewEnv(
		cel.Variable("document", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: cel environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy: gate %s: compile %q: %w", name, expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy: gate %s: expression %q is not a boolean predicate", name, expr)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("policy: gate %s: program: %w", name, err)
	}

	return &CELGate{
		GateName: name,
		Expr:     expr,
		Severity: severity,
		Message:  message,
		program:  prg,
	}, nil
}

func (g *CELGate) Name() string { return g.GateName }

func (g *CELGate) Evaluate(text, documentType string) GateResult {
	input := map[string]any{
		"document": map[string]any{
			"text":   text,
			"lower":  strings.ToLower(text),
			"type":   documentType,
			"length": len(text),
		},
	}

	val, _, err := g.program.Eval(input)
	if err != nil {
		// A runtime evaluation error is a rule defect; fail closed on this
		// gate only, leaving sibling gates untouched.
		return GateResult{
			Status:   StatusFail,
			Severity: g.Severity,
			Message:  fmt.Sprintf("gate %s evaluation error: %v", g.GateName, err),
			Source:   g.Source,
			Category: g.Category,
		}
	}

	if passed, ok := val.Value().(bool); ok && passed {
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
