package policy

// Module is a named, ordered collection of gates executed together.
type Module interface {
	ID() string
	Execute(text, documentType string) *ModuleResult
}

// BasicModule runs its gates sequentially, in declaration order.
type BasicModule struct {
	ModuleID string
	Gates    []Gate
}

// NewModule builds a BasicModule over the given gates.
func NewModule(id string, gates ...Gate) *BasicModule {
	return &BasicModule{ModuleID: id, Gates: gates}
}

func (m *BasicModule) ID() string { return m.ModuleID }

// Execute evaluates every gate against the document. Gate evaluation is
// synchronous and CPU-bound; isolation of gate faults is the orchestrator's
// responsibility, not the module's.
func (m *BasicModule) Execute(text, documentType string) *ModuleResult {
	order := make([]string, 0, len(m.Gates))
	results := make(map[string]GateResult, len(m.Gates))
	for _, gate := range m.Gates {
		order = append(order, gate.Name())
		results[gate.Name()] = gate.Evaluate(text, documentType)
	}
	return NewModuleResult(m.ModuleID, order, results)
}
