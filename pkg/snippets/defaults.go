package snippets

// defaultCatalogYAML is the built-in remediation catalog shipped with the
// engine. It covers every gate of the default rulesets; deployments override
// it with their own catalog file.
const defaultCatalogYAML = `
version: "1.0.0"
snippets:
  - module_id: disclosure
    gate_id: liability-clause
    insertion_point: section
    section_anchor: "terms"
    priority: 40
    severity: high
    template: |
      Limitation of Liability. To the maximum extent permitted by law, the
      aggregate liability of {{company}} under this agreement shall not exceed
      the fees paid in the twelve months preceding the claim.
    defaults:
      company: "the contracting party"

  - module_id: disclosure
    gate_id: governing-law
    insertion_point: end
    priority: 60
    severity: critical
    template: |
      Governing Law. This agreement is governed by and construed under the
      laws of {{jurisdiction}}, without regard to its conflict of laws rules.
    defaults:
      jurisdiction: "the issuing jurisdiction"

  - module_id: disclosure
    gate_id: signature-block
    insertion_point: end
    priority: 10
    severity: medium
    template: |
      Signed by: ______________________
      Name: {{signatory}}
      Date: ______________________
    defaults:
      signatory: "Authorized Representative"

  - module_id: privacy
    gate_id: data-processing-notice
    insertion_point: start
    priority: 80
    severity: critical
    template: |
      Data Processing Notice. {{company}} processes personal data provided
      under this document solely for the purposes described herein.
    defaults:
      company: "The responsible party"

  - module_id: privacy
    gate_id: retention-policy
    insertion_point: end
    priority: 50
    severity: high
    template: |
      Retention. Personal data is retained for {{retention_period}} and
      erased thereafter unless a statutory obligation requires longer storage.
    defaults:
      retention_period: "the legally required period"

  - module_id: privacy
    gate_id: controller-contact
    insertion_point: end
    priority: 20
    severity: medium
    template: |
      Data Protection Officer: reachable at {{dpo_email}}.
    defaults:
      dpo_email: "privacy@example.com"

  - module_id: withholding
    gate_id: tax-id-present
    insertion_point: start
    priority: 70
    severity: high
    template: |
      Tax ID: {{tax_id}}
    defaults:
      tax_id: "[tax identification number on file]"

  - module_id: withholding
    gate_id: withholding-statement
    insertion_point: end
    priority: 90
    severity: critical
    template: |
      Withholding. Payments under this invoice are subject to withholding at
      a rate of {{withholding_rate}} in accordance with the applicable fiscal
      code.
    defaults:
      withholding_rate: "the statutory rate"

  - module_id: withholding
    gate_id: vat-clause
    insertion_point: end
    priority: 30
    severity: medium
    template: |
      VAT. All amounts are stated exclusive of value added tax, which is
      charged at the applicable rate where required.
`
