// Package snippets holds the immutable remediation catalog: one template per
// (module, gate) failure, loaded once at process start. Adding or editing
// catalog entries never requires code changes to the synthesis engine.
package snippets

import (
	"fmt"
	"sort"

	"github.com/veridoc-labs/veridoc/core/pkg/policy"
)

// InsertionPoint says where a snippet lands in the document.
type InsertionPoint string

const (
	InsertStart   InsertionPoint = "start"
	InsertEnd     InsertionPoint = "end"
	InsertSection InsertionPoint = "section"
)

// Snippet is a remediation template bound to a (module, gate) failure.
// Placeholders use {{name}} syntax; Defaults supplies per-snippet fallbacks
// for context keys the caller omits. SectionAnchor guides section insertion:
// the snippet is placed at the paragraph boundary nearest the anchor text.
type Snippet struct {
	ModuleID       string            `json:"module_id" yaml:"module_id"`
	GateID         string            `json:"gate_id" yaml:"gate_id"`
	Template       string            `json:"template" yaml:"template"`
	InsertionPoint InsertionPoint    `json:"insertion_point" yaml:"insertion_point"`
	Priority       int               `json:"priority" yaml:"priority"`
	Severity       policy.Severity   `json:"severity" yaml:"severity"`
	SectionAnchor  string            `json:"section_anchor,omitempty" yaml:"section_anchor,omitempty"`
	Defaults       map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Key returns the snippet's (module, gate) address.
func (s Snippet) Key() policy.GateKey {
	return policy.GateKey{ModuleID: s.ModuleID, GateID: s.GateID}
}

// Catalog is the read-only snippet registry. Built once at startup; safe for
// concurrent readers without locking.
type Catalog struct {
	version string
	byKey   map[policy.GateKey]Snippet
}

// NewCatalog builds a catalog from entries. Duplicate (module, gate) keys are
// an error: the catalog is a function from failure to remedy.
func NewCatalog(version string, entries []Snippet) (*Catalog, error) {
	byKey := make(map[policy.GateKey]Snippet, len(entries))
	for _, s := range entries {
		if s.ModuleID == "" || s.GateID == "" {
			return nil, fmt.Errorf("snippets: entry missing module_id/gate_id")
		}
		switch s.InsertionPoint {
		case InsertStart, InsertEnd, InsertSection:
		default:
			return nil, fmt.Errorf("snippets: %s/%s: invalid insertion point %q", s.ModuleID, s.GateID, s.InsertionPoint)
		}
		key := s.Key()
		if _, dup := byKey[key]; dup {
			return nil, fmt.Errorf("snippets: duplicate entry for %s/%s", s.ModuleID, s.GateID)
		}
		byKey[key] = s
	}
	return &Catalog{version: version, byKey: byKey}, nil
}

// Lookup returns the snippet registered for the given failure, if any.
func (c *Catalog) Lookup(key policy.GateKey) (Snippet, bool) {
	s, ok := c.byKey[key]
	return s, ok
}

// Version reports the catalog version string.
func (c *Catalog) Version() string { return c.version }

// Len reports the number of registered snippets.
func (c *Catalog) Len() int { return len(c.byKey) }

// All returns every snippet in lexical (module, gate) order.
func (c *Catalog) All() []Snippet {
	out := make([]Snippet, 0, len(c.byKey))
	for _, s := range c.byKey {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}
