package rulesets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridoc-labs/veridoc/core/pkg/policy"
)

// compliantContract satisfies every gate of every built-in module.
const compliantContract = `
Data Processing Notice. Acme processes personal data for contract purposes.
Retention: personal data is retained for 24 months.
Contact the data protection officer at privacy@acme.example.

Liability is limited as set out below. Governing law: Ruritania.
Tax ID: RT-12345, VAT number RT999.

Signed by: Jane Roe
`

func TestRegisterDefaults(t *testing.T) {
	reg := policy.NewRegistry()
	require.NoError(t, RegisterDefaults(reg))
	require.Equal(t, []string{ModuleDisclosure, ModulePrivacy, ModuleWithholding}, reg.IDs())

	// Registering twice is a configuration error.
	require.Error(t, RegisterDefaults(reg))
}

func TestDisclosureModule(t *testing.T) {
	m, err := NewDisclosureModule()
	require.NoError(t, err)
	require.Equal(t, ModuleDisclosure, m.ID())

	t.Run("compliant document passes", func(t *testing.T) {
		mr := m.Execute(compliantContract, "contract")
		require.Equal(t, policy.StatusPass, mr.Status)
	})

	t.Run("empty document fails every gate", func(t *testing.T) {
		mr := m.Execute("", "contract")
		require.Equal(t, policy.StatusFail, mr.Status)
		require.Equal(t, 3, mr.ViolationCount)
	})

	t.Run("missing governing law is critical", func(t *testing.T) {
		mr := m.Execute("liability is capped. Signed by: X", "contract")
		gr := mr.Gates["governing-law"]
		require.Equal(t, policy.StatusFail, gr.Status)
		require.Equal(t, policy.SeverityCritical, gr.Severity)
		require.NotEmpty(t, gr.LegalSource)
		require.NotEmpty(t, gr.Suggestion)
	})
}

func TestPrivacyModule(t *testing.T) {
	m, err := NewPrivacyModule()
	require.NoError(t, err)

	mr := m.Execute(compliantContract, "contract")
	require.Equal(t, policy.StatusPass, mr.Status)

	mr = m.Execute("no privacy language at all", "contract")
	require.Equal(t, policy.StatusFail, mr.Status)
	require.Equal(t, policy.SeverityCritical, mr.Gates["data-processing-notice"].Severity)
	require.Equal(t, policy.SeverityHigh, mr.Gates["retention-policy"].Severity)
}

func TestWithholdingModule(t *testing.T) {
	m, err := NewWithholdingModule()
	require.NoError(t, err)

	t.Run("withholding gate applies to invoices only", func(t *testing.T) {
		mr := m.Execute("Tax ID: 1, VAT applies.", "contract")
		require.Equal(t, policy.StatusNotApplicable, mr.Gates["withholding-statement"].Status)
		require.Equal(t, policy.StatusPass, mr.Status)

		mr = m.Execute("Tax ID: 1, VAT applies.", "invoice")
		require.Equal(t, policy.StatusFail, mr.Gates["withholding-statement"].Status)
		require.Equal(t, policy.StatusFail, mr.Status)
	})

	t.Run("invoice with withholding statement passes", func(t *testing.T) {
		mr := m.Execute("Tax number 42. VAT charged. Withholding at 15%.", "invoice")
		require.Equal(t, policy.StatusPass, mr.Status)
	})
}

func TestGateMetadataPopulated(t *testing.T) {
	for _, build := range []func() (policy.Module, error){
		NewDisclosureModule, NewPrivacyModule, NewWithholdingModule,
	} {
		m, err := build()
		require.NoError(t, err)
		mr := m.Execute("", "invoice")
		for gateID, gr := range mr.Gates {
			if gr.Status != policy.StatusFail {
				continue
			}
			require.NotEmpty(t, gr.Source, "gate %s/%s missing source", m.ID(), gateID)
			require.NotEmpty(t, gr.Category, "gate %s/%s missing category", m.ID(), gateID)
		}
	}
}
