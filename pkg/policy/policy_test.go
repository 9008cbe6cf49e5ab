package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeverityRank(t *testing.T) {
	require.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	require.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	require.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	require.Greater(t, SeverityLow.Rank(), SeverityNone.Rank())
	require.Equal(t, -1, Severity("bogus").Rank())
}

func TestNewModuleResult(t *testing.T) {
	gates := map[string]GateResult{
		"a": {Status: StatusPass},
		"b": {Status: StatusFail, Severity: SeverityHigh},
		"c": {Status: StatusFail, Severity: SeverityLow},
		"d": {Status: StatusNotApplicable},
	}
	mr := NewModuleResult("m", []string{"a", "b", "c", "d"}, gates)

	require.Equal(t, StatusFail, mr.Status)
	require.Equal(t, 2, mr.ViolationCount)
	require.Equal(t, []string{"a", "b", "c", "d"}, mr.GateOrder)
}

func TestNewModuleResultAllPassing(t *testing.T) {
	mr := NewModuleResult("m", []string{"a"}, map[string]GateResult{
		"a": {Status: StatusPass},
	})
	require.Equal(t, StatusPass, mr.Status)
	require.Zero(t, mr.ViolationCount)
}

func TestGateKeyLess(t *testing.T) {
	require.True(t, GateKey{"a", "z"}.Less(GateKey{"b", "a"}))
	require.True(t, GateKey{"a", "a"}.Less(GateKey{"a", "b"}))
	require.False(t, GateKey{"b", "a"}.Less(GateKey{"a", "z"}))
}

func TestValidationResultFailingGates(t *testing.T) {
	v := &ValidationResult{
		Timestamp: time.Now(),
		Modules: map[string]*ModuleResult{
			"zeta": NewModuleResult("zeta", []string{"g1"}, map[string]GateResult{
				"g1": {Status: StatusFail, Severity: SeverityHigh},
			}),
			"alpha": NewModuleResult("alpha", []string{"g2", "g1"}, map[string]GateResult{
				"g2": {Status: StatusFail, Severity: SeverityLow},
				"g1": {Status: StatusPass},
			}),
		},
	}

	keys := v.FailingGates()
	require.Equal(t, []GateKey{
		{ModuleID: "alpha", GateID: "g2"},
		{ModuleID: "zeta", GateID: "g1"},
	}, keys)
	require.True(t, v.HasFailures())
	require.Equal(t, []string{"alpha", "zeta"}, v.ModuleIDs())
}

func TestRegexGate(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		wantMatch bool
		text      string
		want      GateStatus
	}{
		{"required pattern present", "liability", true, "Limitation of Liability applies.", StatusPass},
		{"required pattern absent", "liability", true, "nothing here", StatusFail},
		{"forbidden pattern absent", "confidential", false, "public text", StatusPass},
		{"forbidden pattern present", "confidential", false, "strictly Confidential", StatusFail},
		{"case insensitive", "LIABILITY", true, "liability", StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewRegexGate("g", tt.pattern, tt.wantMatch, SeverityHigh, "missing")
			require.NoError(t, err)
			require.Equal(t, tt.want, g.Evaluate(tt.text, "").Status)
		})
	}
}

func TestRegexGateInvalidPattern(t *testing.T) {
	_, err := NewRegexGate("g", "(unclosed", true, SeverityLow, "")
	require.Error(t, err)
}

func TestRegexGateAppliesTo(t *testing.T) {
	g, err := NewRegexGate("g", "withholding", true, SeverityCritical, "missing")
	require.NoError(t, err)
	g.AppliesTo = []string{"invoice"}

	require.Equal(t, StatusNotApplicable, g.Evaluate("no match", "contract").Status)
	require.Equal(t, StatusFail, g.Evaluate("no match", "invoice").Status)
	require.Equal(t, StatusFail, g.Evaluate("no match", "INVOICE").Status)
}

func TestRegexGateFailureCarriesMetadata(t *testing.T) {
	g, err := NewRegexGate("g", "x", true, SeverityHigh, "missing x")
	require.NoError(t, err)
	g.LegalSource = "Act §1"
	g.Suggestion = "add x"
	g.Source = "mod"
	g.Category = "cat"

	gr := g.Evaluate("nothing", "")
	require.Equal(t, StatusFail, gr.Status)
	require.Equal(t, SeverityHigh, gr.Severity)
	require.Equal(t, "missing x", gr.Message)
	require.Equal(t, "Act §1", gr.LegalSource)
	require.Equal(t, "add x", gr.Suggestion)
	require.Equal(t, "mod", gr.Source)
	require.Equal(t, "cat", gr.Category)
}

func TestFuncGate(t *testing.T) {
	g := FuncGate{GateName: "fn", Fn: func(text, documentType string) GateResult {
		if text == "" {
			return GateResult{Status: StatusFail, Severity: SeverityLow}
		}
		return GateResult{Status: StatusPass}
	}}
	require.Equal(t, "fn", g.Name())
	require.Equal(t, StatusFail, g.Evaluate("", "").Status)
	require.Equal(t, StatusPass, g.Evaluate("x", "").Status)
}

func TestBasicModuleExecute(t *testing.T) {
	pass := FuncGate{GateName: "pass", Fn: func(string, string) GateResult {
		return GateResult{Status: StatusPass}
	}}
	fail := FuncGate{GateName: "fail", Fn: func(string, string) GateResult {
		return GateResult{Status: StatusFail, Severity: SeverityMedium}
	}}

	m := NewModule("m", pass, fail)
	mr := m.Execute("text", "")
	require.Equal(t, "m", mr.ModuleID)
	require.Equal(t, []string{"pass", "fail"}, mr.GateOrder)
	require.Equal(t, StatusFail, mr.Status)
	require.Equal(t, 1, mr.ViolationCount)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", func() (Module, error) { return NewModule("a"), nil }))
	require.NoError(t, reg.Register("b", func() (Module, error) { return NewModule("b"), nil }))

	t.Run("duplicate registration fails", func(t *testing.T) {
		err := reg.Register("a", func() (Module, error) { return NewModule("a"), nil })
		require.Error(t, err)
	})

	t.Run("get builds and caches", func(t *testing.T) {
		m1, ok := reg.Get("a")
		require.True(t, ok)
		m2, ok := reg.Get("a")
		require.True(t, ok)
		require.Same(t, m1.(*BasicModule), m2.(*BasicModule))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, ok := reg.Get("nope")
		require.False(t, ok)
	})

	t.Run("resolve empty means all", func(t *testing.T) {
		modules := reg.Resolve(nil)
		require.Len(t, modules, 2)
	})

	t.Run("resolve drops unknown and duplicate ids", func(t *testing.T) {
		modules := reg.Resolve([]string{"a", "ghost", "a", "b"})
		require.Len(t, modules, 2)
	})

	t.Run("ids sorted", func(t *testing.T) {
		require.Equal(t, []string{"a", "b"}, reg.IDs())
	})
}

func TestRegistryMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NewModule("m"))
	require.Panics(t, func() { reg.MustRegister(NewModule("m")) })
}
