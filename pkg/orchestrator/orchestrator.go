// Package orchestrator runs documents through the registered compliance
// modules, isolates module faults, aggregates risk and manages the result
// cache. Module execution order never affects the outcome: results are merged
// by module id, so sequential and worker-pool execution are observationally
// identical.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/veridoc-labs/veridoc/core/pkg/audit"
	"github.com/veridoc-labs/veridoc/core/pkg/cache"
	"github.com/veridoc-labs/veridoc/core/pkg/canonicalize"
	"github.com/veridoc-labs/veridoc/core/pkg/document"
	"github.com/veridoc-labs/veridoc/core/pkg/observability"
	"github.com/veridoc-labs/veridoc/core/pkg/policy"
	"github.com/veridoc-labs/veridoc/core/pkg/risk"
)

// FaultGateID names the synthetic gate carrying a recovered module fault.
const FaultGateID = "module-fault"

// Config tunes a single orchestrator instance.
type Config struct {
	Parallel    bool          // run modules on a worker pool
	MaxWorkers  int           // pool size when Parallel
	CallTimeout time.Duration // bound on total per-call work; 0 = unbounded
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Parallel:    true,
		MaxWorkers:  4,
		CallTimeout: 30 * time.Second,
	}
}

// Deps are the orchestrator's injected collaborators. Every field is optional;
// nil fields degrade to no-ops so the orchestrator is usable as a bare library.
type Deps struct {
	Cache   *cache.ResultCache
	Metrics observability.Metrics
	Audit   audit.Logger
	Tracer  trace.Tracer
}

// Orchestrator validates documents against the module registry.
type Orchestrator struct {
	registry *policy.Registry
	config   *Config
	cache    *cache.ResultCache
	metrics  observability.Metrics
	auditLog audit.Logger
	tracer   trace.Tracer
	logger   *slog.Logger
}

// New builds an Orchestrator. A nil config uses DefaultConfig.
func New(registry *policy.Registry, config *Config, deps Deps) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NopMetrics{}
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger{}
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("orchestrator")
	}
	return &Orchestrator{
		registry: registry,
		config:   config,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		auditLog: deps.Audit,
		tracer:   deps.Tracer,
		logger:   slog.Default().With("component", "orchestrator"),
	}
}

// ValidateText is the boundary entry point consumed by API/CLI layers. It
// rejects malformed input, then delegates to Validate.
func (o *Orchestrator) ValidateText(ctx context.Context, text, documentType string, moduleIDs []string) (*policy.ValidationResult, error) {
	doc, err := document.New(text, documentType)
	if err != nil {
		return nil, err
	}
	return o.Validate(ctx, doc, moduleIDs)
}

// Validate runs the requested modules against the document. Unknown module ids
// are silently dropped; a nil/empty set means all registered modules. Empty
// documents are valid input. A module's internal fault is converted to a
// synthetic critical FAIL and never aborts sibling modules.
func (o *Orchestrator) Validate(ctx context.Context, doc document.Document, moduleIDs []string) (*policy.ValidationResult, error) {
	start := time.Now()

	if o.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.CallTimeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.validate",
		trace.WithAttributes(
			attribute.String("document.hash", doc.ContentHash),
			attribute.String("document.type", doc.DocumentType),
		))
	defer span.End()

	modules := o.registry.Resolve(moduleIDs)
	activeIDs := make([]string, 0, len(modules))
	for _, m := range modules {
		activeIDs = append(activeIDs, m.ID())
	}
	sort.Strings(activeIDs)

	key := cache.Key(doc.ContentHash, doc.DocumentType, activeIDs)
	if cached, ok := o.cache.Get(ctx, key); ok {
		// Observationally equivalent to a fresh run except for the flag and
		// the refreshed timestamp.
		cached.Cached = true
		cached.Timestamp = time.Now().UTC()
		o.metrics.RecordValidation(ctx, string(cached.OverallRisk), true, time.Since(start))
		return cached, nil
	}

	results := o.executeModules(ctx, modules, doc)

	moduleResults := make(map[string]*policy.ModuleResult, len(results))
	for _, mr := range results {
		moduleResults[mr.ModuleID] = mr
	}

	result := &policy.ValidationResult{
		DocumentHash: doc.ContentHash,
		DocumentType: doc.DocumentType,
		Timestamp:    time.Now().UTC(),
		Modules:      moduleResults,
		OverallRisk:  risk.Aggregate(moduleResults),
		Cached:       false,
	}

	// Best-effort side effects: neither a cache outage nor an audit failure
	// may fail the validation.
	o.cache.Set(ctx, key, result)
	o.emitAudit(ctx, doc, activeIDs, result, time.Since(start))
	o.metrics.RecordValidation(ctx, string(result.OverallRisk), false, time.Since(start))

	return result, nil
}

// executeModules runs every module with fault isolation, sequentially or on a
// bounded worker pool. Result order follows the input order; the caller merges
// by module id anyway.
func (o *Orchestrator) executeModules(ctx context.Context, modules []policy.Module, doc document.Document) []*policy.ModuleResult {
	results := make([]*policy.ModuleResult, len(modules))

	if !o.config.Parallel || len(modules) < 2 {
		for i, m := range modules {
			results[i] = o.runModule(ctx, m, doc)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.MaxWorkers)
	for i, m := range modules {
		g.Go(func() error {
			results[i] = o.runModule(gctx, m, doc)
			return nil
		})
	}
	_ = g.Wait() // runModule never returns an error; faults become results
	return results
}

// runModule executes one module, converting any panic into a synthetic
// critical FAIL result so one rule defect cannot corrupt the whole run.
func (o *Orchestrator) runModule(ctx context.Context, m policy.Module, doc document.Document) (result *policy.ModuleResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "module fault recovered",
				"module", m.ID(), "fault", fmt.Sprint(r))
			o.metrics.RecordModuleFault(ctx, m.ID())
			result = faultResult(m.ID(), fmt.Sprintf("module fault: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return faultResult(m.ID(), fmt.Sprintf("module skipped: %v", err))
	}
	return m.Execute(doc.Text, doc.DocumentType)
}

// faultResult is the synthetic ModuleResult for an isolated module fault.
func faultResult(moduleID, message string) *policy.ModuleResult {
	return policy.NewModuleResult(moduleID,
		[]string{FaultGateID},
		map[string]policy.GateResult{
			FaultGateID: {
				Status:   policy.StatusFail,
				Severity: policy.SeverityCritical,
				Message:  message,
				Source:   moduleID,
				Category: "fault",
			},
		})
}

// ClearCache drops every cached validation entry.
func (o *Orchestrator) ClearCache(ctx context.Context) bool {
	return o.cache.Clear(ctx)
}

func (o *Orchestrator) emitAudit(ctx context.Context, doc document.Document, moduleIDs []string, result *policy.ValidationResult, duration time.Duration) {
	event := audit.NewEvent(audit.KindValidation, doc.ContentHash, doc.DocumentType, moduleIDs)
	event.Duration = duration
	event.Summary["overall_risk"] = string(result.OverallRisk)
	event.Summary["failing_gates"] = fmt.Sprintf("%d", len(result.FailingGates()))
	// Canonical digest of the full result, so two runs over the same input can
	// be compared by the audit trail alone.
	if digest, err := canonicalize.CanonicalHash(result); err == nil {
		event.Summary["result_digest"] = digest
	}
	if err := o.auditLog.Record(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "audit record dropped", "error", err)
	}
}
