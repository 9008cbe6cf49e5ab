// Package policy defines the gate/module data model shared by the validation
// orchestrator, risk aggregator and synthesis engine. Gates are pure functions;
// every result type here is immutable once produced.
package policy

import (
	"sort"
	"time"
)

// GateStatus is the outcome of a single gate evaluation.
type GateStatus string

const (
	StatusPass          GateStatus = "PASS"
	StatusWarn          GateStatus = "WARN"
	StatusFail          GateStatus = "FAIL"
	StatusNotApplicable GateStatus = "NOT_APPLICABLE"
)

// Severity grades how serious a gate failure is.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns an ordinal for severity comparison. Unknown severities rank
// below "none" so they can never escalate a verdict.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityNone:
		return 0
	}
	return -1
}

// RiskLevel is the triage verdict over a whole validation.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// GateResult is the outcome of one gate against one document.
// LegalSource and Suggestion are opaque metadata carried for callers; the core
// never interprets them. Source and Category identify the signal origin for
// risk de-duplication.
type GateResult struct {
	Status      GateStatus `json:"status"`
	Severity    Severity   `json:"severity"`
	Message     string     `json:"message"`
	LegalSource string     `json:"legal_source,omitempty"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Source      string     `json:"source,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// ModuleResult groups the gate results of one module, in gate order.
type ModuleResult struct {
	ModuleID       string                `json:"module_id"`
	GateOrder      []string              `json:"gate_order"`
	Gates          map[string]GateResult `json:"gates"`
	Status         GateStatus            `json:"status"`
	ViolationCount int                   `json:"violation_count"`
}

// NewModuleResult assembles a ModuleResult and computes the derived status and
// violation count. The module FAILs if any gate FAILs.
func NewModuleResult(moduleID string, order []string, gates map[string]GateResult) *ModuleResult {
	mr := &ModuleResult{
		ModuleID:  moduleID,
		GateOrder: append([]string(nil), order...),
		Gates:     gates,
		Status:    StatusPass,
	}
	for _, name := range mr.GateOrder {
		if gates[name].Status == StatusFail {
			mr.Status = StatusFail
			mr.ViolationCount++
		}
	}
	return mr
}

// GateKey addresses a single gate within a module.
type GateKey struct {
	ModuleID string `json:"module_id"`
	GateID   string `json:"gate_id"`
}

// Less orders keys lexically by (module, gate). Used wherever a stable,
// scheduling-independent ordering is required.
func (k GateKey) Less(other GateKey) bool {
	if k.ModuleID != other.ModuleID {
		return k.ModuleID < other.ModuleID
	}
	return k.GateID < other.GateID
}

// ValidationResult is the full outcome of one orchestration run.
// OverallRisk is always derived from the contained gate results via the risk
// aggregator; it is never set independently.
type ValidationResult struct {
	DocumentHash string                   `json:"document_hash"`
	DocumentType string                   `json:"document_type"`
	Timestamp    time.Time                `json:"timestamp"`
	Modules      map[string]*ModuleResult `json:"modules"`
	OverallRisk  RiskLevel                `json:"overall_risk"`
	Cached       bool                     `json:"cached"`
}

// FailingGates returns the set of failing (module, gate) keys in lexical order.
func (v *ValidationResult) FailingGates() []GateKey {
	var keys []GateKey
	for moduleID, mr := range v.Modules {
		for _, gateID := range mr.GateOrder {
			if mr.Gates[gateID].Status == StatusFail {
				keys = append(keys, GateKey{ModuleID: moduleID, GateID: gateID})
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// HasFailures reports whether any gate in any module failed.
func (v *ValidationResult) HasFailures() bool {
	for _, mr := range v.Modules {
		if mr.Status == StatusFail {
			return true
		}
	}
	return false
}

// ModuleIDs returns the sorted set of module ids contained in the result.
func (v *ValidationResult) ModuleIDs() []string {
	ids := make([]string, 0, len(v.Modules))
	for id := range v.Modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
