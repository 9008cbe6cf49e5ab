// Package risk collapses gate results into a single ordinal verdict.
// Callers need a fast triage signal, not a weighted score: severities are
// never summed or averaged, and one critical failure dominates any number of
// lower-severity passes.
package risk

import (
	"github.com/veridoc-labs/veridoc/core/pkg/policy"
)

type signalKey struct {
	source   string
	category string
	gate     policy.GateKey
}

// Aggregate scans every gate result across every module and returns the
// overall risk: CRITICAL if any critical FAIL exists, HIGH if any high FAIL
// exists, LOW otherwise.
//
// Overlapping signals are de-duplicated before aggregation: each distinct
// (source, category) pair contributes at most once, at its highest observed
// severity. Results without source/category metadata are keyed by their
// (module, gate) identity instead, so anonymous gates are never collapsed
// together.
func Aggregate(modules map[string]*policy.ModuleResult) policy.RiskLevel {
	failures := make(map[signalKey]policy.Severity)

	for moduleID, mr := range modules {
		for _, gateID := range mr.GateOrder {
			gr := mr.Gates[gateID]
			if gr.Status != policy.StatusFail {
				continue
			}
			key := signalKey{source: gr.Source, category: gr.Category}
			if gr.Source == "" && gr.Category == "" {
				key.gate = policy.GateKey{ModuleID: moduleID, GateID: gateID}
			}
			if existing, ok := failures[key]; !ok || gr.Severity.Rank() > existing.Rank() {
				failures[key] = gr.Severity
			}
		}
	}

	level := policy.RiskLow
	for _, sev := range failures {
		switch sev {
		case policy.SeverityCritical:
			return policy.RiskCritical
		case policy.SeverityHigh:
			level = policy.RiskHigh
		}
	}
	return level
}
