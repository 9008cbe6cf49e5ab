// Package rulesets ships the built-in compliance modules. Rule bodies are
// deliberately data-like: each module is a list of gate specs the composition
// root registers at startup, and deployments may replace them wholesale
// without touching the orchestrator or synthesis engine.
package rulesets

import (
	"fmt"

	"github.com/veridoc-labs/veridoc/core/pkg/policy"
)

// Module ids for the built-in rulesets.
const (
	ModuleDisclosure  = "disclosure"
	ModulePrivacy     = "privacy"
	ModuleWithholding = "withholding"
)

// RegisterDefaults registers the built-in modules with the given registry.
func RegisterDefaults(reg *policy.Registry) error {
	builders := map[string]func() (policy.Module, error){
		ModuleDisclosure:  NewDisclosureModule,
		ModulePrivacy:     NewPrivacyModule,
		ModuleWithholding: NewWithholdingModule,
	}
	for id, build := range builders {
		if err := reg.Register(id, build); err != nil {
			return err
		}
	}
	return nil
}

// NewDisclosureModule checks contractual disclosure obligations.
func NewDisclosureModule() (policy.Module, error) {
	liability, err := gate(ModuleDisclosure, "liability-clause",
		`liability|indemnif`, true, policy.SeverityHigh,
		"document lacks a limitation-of-liability clause",
		"Obligations Act §12", "add a limitation of liability section", "clause")
	if err != nil {
		return nil, err
	}

	governingLaw, err := gate(ModuleDisclosure, "governing-law",
		`governing law|applicable law`, true, policy.SeverityCritical,
		"document does not declare its governing law",
		"Conflict of Laws Act §3", "declare the governing jurisdiction", "clause")
	if err != nil {
		return nil, err
	}

	signature, err := policy.NewCELGate("signature-block",
		`document.lower.contains("signature") || document.lower.contains("signed by")`,
		policy.SeverityMedium,
		"document has no signature block")
	if err != nil {
		return nil, err
	}
	signature.LegalSource = "Execution Formalities §2"
	signature.Suggestion = "append a signature block"
	signature.Source = ModuleDisclosure
	signature.Category = "execution"

	return policy.NewModule(ModuleDisclosure, liability, governingLaw, signature), nil
}

// NewPrivacyModule checks data-protection notice obligations.
func NewPrivacyModule() (policy.Module, error) {
	processing, err := gate(ModulePrivacy, "data-processing-notice",
		`personal data|data processing`, true, policy.SeverityCritical,
		"document does not disclose processing of personal data",
		"Data Protection Act Art. 13", "add a data processing notice", "notice")
	if err != nil {
		return nil, err
	}

	retention, err := gate(ModulePrivacy, "retention-policy",
		`retention|retained for`, true, policy.SeverityHigh,
		"document does not state a data retention period",
		"Data Protection Act Art. 13(2)", "state the retention period", "notice")
	if err != nil {
		return nil, err
	}

	contact, err := gate(ModulePrivacy, "controller-contact",
		`data protection officer|privacy@|dpo`, true, policy.SeverityMedium,
		"document names no data protection contact",
		"Data Protection Act Art. 37", "name the data protection contact", "contact")
	if err != nil {
		return nil, err
	}

	return policy.NewModule(ModulePrivacy, processing, retention, contact), nil
}

// NewWithholdingModule checks tax statement obligations. The withholding gate
// applies to invoices only and reports NOT_APPLICABLE elsewhere.
func NewWithholdingModule() (policy.Module, error) {
	taxID, err := gate(ModuleWithholding, "tax-id-present",
		`tax (id|identification|number)|vat (id|number)`, true, policy.SeverityHigh,
		"document carries no tax identification number",
		"Fiscal Code §14", "include the issuer tax id", "identification")
	if err != nil {
		return nil, err
	}

	withholding, err := gate(ModuleWithholding, "withholding-statement",
		`withholding`, true, policy.SeverityCritical,
		"invoice does not state the withholding treatment",
		"Fiscal Code §50a", "state the applicable withholding rate", "statement")
	if err != nil {
		return nil, err
	}
	withholding.AppliesTo = []string{"invoice"}

	vat, err := gate(ModuleWithholding, "vat-clause",
		`vat|value added tax`, true, policy.SeverityMedium,
		"document does not address value added tax",
		"VAT Act §1", "add a VAT clause", "statement")
	if err != nil {
		return nil, err
	}

	return policy.NewModule(ModuleWithholding, taxID, withholding, vat), nil
}

// gate builds a RegexGate with the ruleset's source/category metadata filled in.
func gate(moduleID, name, pattern string, wantMatch bool, sev policy.Severity, message, legalSource, suggestion, category string) (*policy.RegexGate, error) {
	g, err := policy.NewRegexGate(name, pattern, wantMatch, sev, message)
	if err != nil {
		return nil, fmt.Errorf("rulesets: %s: %w", moduleID, err)
	}
	g.LegalSource = legalSource
	g.Suggestion = suggestion
	g.Source = moduleID
	g.Category = category
	return g, nil
}
