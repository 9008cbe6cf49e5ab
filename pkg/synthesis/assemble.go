package synthesis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/veridoc-labs/veridoc/core/pkg/policy"
	"github.com/veridoc-labs/veridoc/core/pkg/snippets"
)

// selection is the outcome of one fix-selection pass: the snippets to apply,
// grouped by insertion point and deterministically ordered, plus the failures
// with no registered remedy (carried forward unresolved).
type selection struct {
	start      []snippets.Snippet
	section    []snippets.Snippet
	end        []snippets.Snippet
	unresolved []policy.GateKey
}

func (s selection) empty() bool {
	return len(s.start) == 0 && len(s.section) == 0 && len(s.end) == 0
}

func (s selection) count() int {
	return len(s.start) + len(s.section) + len(s.end)
}

// ordered returns all selected snippets in application order: start group,
// then section group, then end group.
func (s selection) ordered() []snippets.Snippet {
	out := make([]snippets.Snippet, 0, s.count())
	out = append(out, s.start...)
	out = append(out, s.section...)
	out = append(out, s.end...)
	return out
}

// selectFixes looks up a snippet for every failing gate. Within each insertion
// group, snippets are ordered by descending priority, tie-broken by lexical
// (module, gate) order; the ordering is stable across runs, which the
// determinism hash depends on.
func selectFixes(catalog *snippets.Catalog, failing []policy.GateKey) selection {
	var sel selection
	for _, key := range failing {
		snip, ok := catalog.Lookup(key)
		if !ok {
			sel.unresolved = append(sel.unresolved, key)
			continue
		}
		switch snip.InsertionPoint {
		case snippets.InsertStart:
			sel.start = append(sel.start, snip)
		case snippets.InsertSection:
			sel.section = append(sel.section, snip)
		default:
			sel.end = append(sel.end, snip)
		}
	}
	for _, group := range [][]snippets.Snippet{sel.start, sel.section, sel.end} {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Priority != group[j].Priority {
				return group[i].Priority > group[j].Priority
			}
			return group[i].Key().Less(group[j].Key())
		})
	}
	return sel
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// render substitutes {{name}} placeholders from the caller context, falling
// back to the snippet's own defaults. A key missing from both is left in
// place as a visible marker; it is never a hard error.
func render(snip snippets.Snippet, context map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(snip.Template, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		if value, ok := context[name]; ok {
			return value
		}
		if value, ok := snip.Defaults[name]; ok {
			return value
		}
		return token
	})
}

// assemble produces the next document text from the current one plus the
// selected snippets. Start snippets are prepended in order, end snippets
// appended in order, section snippets inserted at the paragraph boundary
// nearest their anchor. Identical input always yields byte-identical output.
func assemble(text string, sel selection, context map[string]string) string {
	for _, snip := range sel.section {
		text = insertAtSection(text, block(render(snip, context)), snip.SectionAnchor)
	}

	if len(sel.start) > 0 {
		var prefix strings.Builder
		for _, snip := range sel.start {
			prefix.WriteString(block(render(snip, context)))
			prefix.WriteString("\n\n")
		}
		if text == "" {
			text = strings.TrimSuffix(prefix.String(), "\n")
		} else {
			text = prefix.String() + text
		}
	}

	for _, snip := range sel.end {
		rendered := block(render(snip, context))
		if text == "" {
			text = rendered + "\n"
		} else {
			text = strings.TrimRight(text, "\n") + "\n\n" + rendered + "\n"
		}
	}
	return text
}

// insertAtSection places rendered text at the first paragraph boundary after
// the anchor. Without an anchor match the snippet falls back to the end of the
// document; the fallback is deterministic, not positional guesswork.
func insertAtSection(text, rendered, anchor string) string {
	if anchor != "" {
		lower := strings.ToLower(text)
		if idx := strings.Index(lower, strings.ToLower(anchor)); idx >= 0 {
			boundary := strings.Index(text[idx:], "\n\n")
			if boundary >= 0 {
				pos := idx + boundary
				return text[:pos] + "\n\n" + rendered + text[pos:]
			}
		}
	}
	if text == "" {
		return rendered + "\n"
	}
	return strings.TrimRight(text, "\n") + "\n\n" + rendered + "\n"
}

// block trims trailing newlines so separator handling stays uniform.
func block(rendered string) string {
	return strings.TrimRight(rendered, "\n")
}
