// Package synthesis implements the remediation convergence loop: validate,
// select snippets for failing gates, assemble a new document, re-validate,
// until every gate passes or the engine proves it cannot make progress within
// the iteration budget. Non-convergence is a first-class result (NeedsReview),
// never an error.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/veridoc-labs/veridoc/core/pkg/audit"
	"github.com/veridoc-labs/veridoc/core/pkg/document"
	"github.com/veridoc-labs/veridoc/core/pkg/observability"
	"github.com/veridoc-labs/veridoc/core/pkg/policy"
	"github.com/veridoc-labs/veridoc/core/pkg/snippets"
)

// Validator is the orchestrator-shaped collaborator the engine re-validates
// through after every assembly step.
type Validator interface {
	Validate(ctx context.Context, doc document.Document, moduleIDs []string) (*policy.ValidationResult, error)
}

// AppliedSnippet records one snippet application for the audit trail.
type AppliedSnippet struct {
	ModuleID  string `json:"module_id"`
	GateID    string `json:"gate_id"`
	Iteration int    `json:"iteration"`
	Order     int    `json:"order"`
}

// Result is the full outcome of one synthesis run. NeedsReview=true is the
// documented way to signal "could not fully resolve".
type Result struct {
	OriginalText    string                   `json:"original_text"`
	SynthesizedText string                   `json:"synthesized_text"`
	SnippetsApplied []AppliedSnippet         `json:"snippets_applied"`
	Iterations      int                      `json:"iterations"`
	Success         bool                     `json:"success"`
	NeedsReview     bool                     `json:"needs_review"`
	Reason          string                   `json:"reason"`
	FinalValidation *policy.ValidationResult `json:"final_validation,omitempty"`
	DeterminismHash string                   `json:"determinism_hash"`
}

// Config tunes the engine.
type Config struct {
	MaxIterations int
}

// DefaultConfig returns the standard iteration budget.
func DefaultConfig() *Config {
	return &Config{MaxIterations: 5}
}

// Deps are the engine's optional collaborators; nil fields become no-ops.
type Deps struct {
	Metrics observability.Metrics
	Audit   audit.Logger
	Tracer  trace.Tracer
}

// Engine drives the remediation loop. The loop is strictly sequential per
// call (each iteration depends on the previous document state); independent
// documents may be synthesized concurrently by independent callers.
type Engine struct {
	validator Validator
	catalog   *snippets.Catalog
	config    *Config
	metrics   observability.Metrics
	auditLog  audit.Logger
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewEngine builds an Engine over the given validator and snippet catalog.
func NewEngine(validator Validator, catalog *snippets.Catalog, config *Config, deps Deps) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultConfig().MaxIterations
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NopMetrics{}
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger{}
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("synthesis")
	}
	return &Engine{
		validator: validator,
		catalog:   catalog,
		config:    config,
		metrics:   deps.Metrics,
		auditLog:  deps.Audit,
		tracer:    deps.Tracer,
		logger:    slog.Default().With("component", "synthesis"),
	}
}

// Synthesize remediates baseText until validation passes, no fix is available,
// progress stalls, or the iteration budget is exhausted. validation may be nil,
// in which case the engine runs an initial validation itself. The call always
// returns a Result; internal faults are reported through Reason, never raised.
func (e *Engine) Synthesize(ctx context.Context, baseText string, validation *policy.ValidationResult, templateContext map[string]string, moduleIDs []string) (*Result, error) {
	start := time.Now()

	documentType := ""
	if validation != nil {
		documentType = validation.DocumentType
	}
	doc, err := document.New(baseText, documentType)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "synthesis.synthesize",
		trace.WithAttributes(attribute.String("document.hash", doc.ContentHash)))
	defer span.End()

	result := &Result{
		OriginalText:    doc.Text,
		SynthesizedText: doc.Text,
	}

	current := validation
	if current == nil {
		current, err = e.validator.Validate(ctx, doc, moduleIDs)
		if err != nil {
			result.NeedsReview = true
			result.Reason = fmt.Sprintf("initial validation failed: %v", err)
			e.finish(ctx, result, current, doc, start)
			return result, nil
		}
	}

	if !current.HasFailures() {
		result.Success = true
		result.Reason = "document already satisfies all active gates"
		e.finish(ctx, result, current, doc, start)
		return result, nil
	}

	failing := current.FailingGates()

	for iteration := 1; iteration <= e.config.MaxIterations; iteration++ {
		sel := selectFixes(e.catalog, failing)
		if sel.empty() {
			result.Iterations = iteration
			result.NeedsReview = true
			result.Reason = fmt.Sprintf(
				"no available remediation for %d failing gate(s), first: %s/%s",
				len(sel.unresolved), sel.unresolved[0].ModuleID, sel.unresolved[0].GateID)
			break
		}

		newText, assembleErr := e.assembleSafely(doc.Text, sel, templateContext)
		if assembleErr != nil {
			result.Iterations = iteration
			result.NeedsReview = true
			result.Reason = fmt.Sprintf("assembly fault in iteration %d: %v", iteration, assembleErr)
			break
		}

		order := 0
		for _, snip := range sel.ordered() {
			order++
			result.SnippetsApplied = append(result.SnippetsApplied, AppliedSnippet{
				ModuleID:  snip.ModuleID,
				GateID:    snip.GateID,
				Iteration: iteration,
				Order:     order,
			})
		}

		doc = doc.WithText(newText)
		result.Iterations = iteration

		current, err = e.validator.Validate(ctx, doc, moduleIDs)
		if err != nil {
			result.NeedsReview = true
			result.Reason = fmt.Sprintf("re-validation failed in iteration %d: %v", iteration, err)
			break
		}

		newFailing := current.FailingGates()
		if len(newFailing) == 0 {
			result.Success = true
			result.Reason = fmt.Sprintf("all gates passing after %d iteration(s)", iteration)
			break
		}
		if containsAll(newFailing, failing) {
			// The failing set is identical to or a superset of the previous
			// one: applying more snippets cannot help.
			result.NeedsReview = true
			result.Reason = fmt.Sprintf("no progress in iteration %d: failing gate set did not shrink", iteration)
			break
		}
		failing = newFailing
	}

	if !result.Success && !result.NeedsReview {
		result.NeedsReview = true
		result.Reason = fmt.Sprintf("iteration budget of %d exhausted with gates still failing", e.config.MaxIterations)
	}

	result.SynthesizedText = doc.Text
	e.finish(ctx, result, current, doc, start)
	return result, nil
}

// assembleSafely isolates assembly faults per iteration.
func (e *Engine) assembleSafely(text string, sel selection, templateContext map[string]string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("assembly fault recovered", "fault", fmt.Sprint(r))
			err = fmt.Errorf("%v", r)
		}
	}()
	return assemble(text, sel, templateContext), nil
}

// containsAll reports whether superset contains every key of subset.
func containsAll(superset, subset []policy.GateKey) bool {
	index := make(map[policy.GateKey]bool, len(superset))
	for _, k := range superset {
		index[k] = true
	}
	for _, k := range subset {
		if !index[k] {
			return false
		}
	}
	return true
}

// finish stamps the determinism hash and emits metrics plus the audit record.
func (e *Engine) finish(ctx context.Context, result *Result, current *policy.ValidationResult, doc document.Document, start time.Time) {
	result.FinalValidation = current
	result.DeterminismHash = document.HashText(result.SynthesizedText)

	duration := time.Since(start)
	e.metrics.RecordSynthesis(ctx, result.Success, result.Iterations, duration)

	moduleIDs := []string{}
	if current != nil {
		moduleIDs = current.ModuleIDs()
	}
	event := audit.NewEvent(audit.KindSynthesis, doc.ContentHash, doc.DocumentType, moduleIDs)
	event.Duration = duration
	event.Summary["success"] = fmt.Sprintf("%t", result.Success)
	event.Summary["needs_review"] = fmt.Sprintf("%t", result.NeedsReview)
	event.Summary["iterations"] = fmt.Sprintf("%d", result.Iterations)
	event.Summary["determinism_hash"] = result.DeterminismHash
	if err := e.auditLog.Record(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "audit record dropped", "error", err)
	}
}
