// Package batch processes independent documents concurrently. Each document's
// validate/synthesize pipeline is independent, so the batch is embarrassingly
// parallel; a worker cap and a rate limiter bound resource use on large
// batches. No cross-document ordering is guaranteed or required.
package batch

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/veridoc-labs/veridoc/core/pkg/orchestrator"
	"github.com/veridoc-labs/veridoc/core/pkg/policy"
	"github.com/veridoc-labs/veridoc/core/pkg/synthesis"
)

// Item is one document to process.
type Item struct {
	Text         string            `json:"text"`
	DocumentType string            `json:"document_type"`
	ModuleIDs    []string          `json:"module_ids,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
	Remediate    bool              `json:"remediate"`
}

// Outcome pairs an item index with its results. Err is only set for boundary
// rejections (malformed input); pipeline-internal conditions surface inside
// the result structures.
type Outcome struct {
	Index      int                      `json:"index"`
	Validation *policy.ValidationResult `json:"validation,omitempty"`
	Synthesis  *synthesis.Result        `json:"synthesis,omitempty"`
	Err        error                    `json:"-"`
}

// Config bounds batch resource use.
type Config struct {
	MaxConcurrency int
	RatePerSecond  float64 // 0 = unlimited
	Burst          int
}

// DefaultConfig returns conservative limits.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 8,
		RatePerSecond:  0,
		Burst:          1,
	}
}

// Processor fans a batch out over the orchestrator and synthesis engine.
type Processor struct {
	orch    *orchestrator.Orchestrator
	engine  *synthesis.Engine
	config  *Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewProcessor builds a Processor. engine may be nil when the deployment only
// validates.
func NewProcessor(orch *orchestrator.Orchestrator, engine *synthesis.Engine, config *Config) *Processor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}
	return &Processor{
		orch:    orch,
		engine:  engine,
		config:  config,
		limiter: limiter,
		logger:  slog.Default().With("component", "batch"),
	}
}

// Process runs every item through validation (and remediation when requested)
// on a bounded worker pool. Outcomes are returned indexed by input position.
func (p *Processor) Process(ctx context.Context, items []Item) []Outcome {
	outcomes := make([]Outcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrency)

	for i, item := range items {
		g.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(gctx); err != nil {
					outcomes[i] = Outcome{Index: i, Err: err}
					return nil
				}
			}
			outcomes[i] = p.processOne(gctx, i, item)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Processor) processOne(ctx context.Context, index int, item Item) Outcome {
	outcome := Outcome{Index: index}

	validation, err := p.orch.ValidateText(ctx, item.Text, item.DocumentType, item.ModuleIDs)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Validation = validation

	if item.Remediate && p.engine != nil && validation.HasFailures() {
		result, err := p.engine.Synthesize(ctx, item.Text, validation, item.Context, item.ModuleIDs)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Synthesis = result
	}
	return outcome
}
