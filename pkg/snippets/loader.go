package snippets

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// catalogSchema validates the decoded catalog document before it is trusted.
// Schema errors at load time are configuration defects and fail startup.
const catalogSchema = `{
  "type": "object",
  "required": ["version", "snippets"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "snippets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["module_id", "gate_id", "template", "insertion_point"],
        "properties": {
          "module_id": {"type": "string", "minLength": 1},
          "gate_id": {"type": "string", "minLength": 1},
          "template": {"type": "string", "minLength": 1},
          "insertion_point": {"enum": ["start", "end", "section"]},
          "priority": {"type": "integer"},
          "severity": {"enum": ["none", "low", "medium", "high", "critical"]},
          "section_anchor": {"type": "string"},
          "defaults": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// supportedCatalog constrains which catalog format versions this engine loads.
const supportedCatalog = ">= 1.0.0, < 2.0.0"

type catalogFile struct {
	Version  string    `yaml:"version"`
	Snippets []Snippet `yaml:"snippets"`
}

// Load reads a versioned YAML catalog, validates it against the schema and the
// supported version range, and returns an immutable Catalog.
func Load(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("snippets: read catalog: %w", err)
	}

	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("snippets: parse catalog: %w", err)
	}

	schema, err := jsonschema.CompileString("catalog.schema.json", catalogSchema)
	if err != nil {
		return nil, fmt.Errorf("snippets: compile schema: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("snippets: catalog rejected by schema: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("snippets: decode catalog: %w", err)
	}

	version, err := semver.NewVersion(file.Version)
	if err != nil {
		return nil, fmt.Errorf("snippets: catalog version %q: %w", file.Version, err)
	}
	constraint, err := semver.NewConstraint(supportedCatalog)
	if err != nil {
		return nil, fmt.Errorf("snippets: version constraint: %w", err)
	}
	if !constraint.Check(version) {
		return nil, fmt.Errorf("snippets: catalog version %s outside supported range %s", version, supportedCatalog)
	}

	for i := range file.Snippets {
		if file.Snippets[i].Severity == "" {
			file.Snippets[i].Severity = "medium"
		}
	}
	return NewCatalog(version.String(), file.Snippets)
}

// LoadFile loads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snippets: open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in catalog covering the shipped rulesets.
func Default() *Catalog {
	catalog, err := Load(strings.NewReader(defaultCatalogYAML))
	if err != nil {
		// The embedded catalog is validated by tests; a failure here is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("snippets: embedded catalog invalid: %v", err))
	}
	return catalog
}
