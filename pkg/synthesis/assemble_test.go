package synthesis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridoc-labs/veridoc/core/pkg/policy"
	"github.com/veridoc-labs/veridoc/core/pkg/snippets"
)

func mustCatalog(t *testing.T, entries ...snippets.Snippet) *snippets.Catalog {
	t.Helper()
	c, err := snippets.NewCatalog("1.0.0", entries)
	require.NoError(t, err)
	return c
}

func TestSelectFixes(t *testing.T) {
	catalog := mustCatalog(t,
		snippets.Snippet{ModuleID: "m", GateID: "low", Template: "L", InsertionPoint: snippets.InsertEnd, Priority: 10},
		snippets.Snippet{ModuleID: "m", GateID: "high", Template: "H", InsertionPoint: snippets.InsertEnd, Priority: 90},
		snippets.Snippet{ModuleID: "m", GateID: "top", Template: "T", InsertionPoint: snippets.InsertStart, Priority: 50},
	)

	failing := []policy.GateKey{
		{ModuleID: "m", GateID: "low"},
		{ModuleID: "m", GateID: "high"},
		{ModuleID: "m", GateID: "top"},
		{ModuleID: "m", GateID: "orphan"},
	}

	sel := selectFixes(catalog, failing)
	require.Equal(t, 3, sel.count())
	require.False(t, sel.empty())

	// End group is priority-descending.
	require.Equal(t, "high", sel.end[0].GateID)
	require.Equal(t, "low", sel.end[1].GateID)
	require.Len(t, sel.start, 1)

	// Unresolved failures are carried, not dropped.
	require.Equal(t, []policy.GateKey{{ModuleID: "m", GateID: "orphan"}}, sel.unresolved)

	// Application order: start, section, end.
	ordered := sel.ordered()
	require.Equal(t, "top", ordered[0].GateID)
	require.Equal(t, "high", ordered[1].GateID)
}

func TestSelectFixesPriorityTieBreak(t *testing.T) {
	catalog := mustCatalog(t,
		snippets.Snippet{ModuleID: "b", GateID: "g", Template: "B", InsertionPoint: snippets.InsertEnd, Priority: 10},
		snippets.Snippet{ModuleID: "a", GateID: "g", Template: "A", InsertionPoint: snippets.InsertEnd, Priority: 10},
	)
	failing := []policy.GateKey{
		{ModuleID: "b", GateID: "g"},
		{ModuleID: "a", GateID: "g"},
	}

	sel := selectFixes(catalog, failing)
	require.Equal(t, "a", sel.end[0].ModuleID)
	require.Equal(t, "b", sel.end[1].ModuleID)
}

func TestRender(t *testing.T) {
	snip := snippets.Snippet{
		Template: "Contact {{name}} at {{email}}; see {{unknown}}.",
		Defaults: map[string]string{"name": "DPO", "email": "dpo@example.com"},
	}

	t.Run("context wins over defaults", func(t *testing.T) {
		out := render(snip, map[string]string{"name": "Jane"})
		require.Equal(t, "Contact Jane at dpo@example.com; see {{unknown}}.", out)
	})

	t.Run("unresolved placeholder stays visible", func(t *testing.T) {
		out := render(snip, nil)
		require.Contains(t, out, "{{unknown}}")
	})

	t.Run("whitespace in braces tolerated", func(t *testing.T) {
		out := render(snippets.Snippet{Template: "x {{ key }} y"}, map[string]string{"key": "v"})
		require.Equal(t, "x v y", out)
	})
}

func TestAssemble(t *testing.T) {
	t.Run("end snippets appended in order", func(t *testing.T) {
		sel := selection{end: []snippets.Snippet{
			{Template: "FIRST\n"},
			{Template: "SECOND\n"},
		}}
		out := assemble("body text\n", sel, nil)
		require.Equal(t, "body text\n\nFIRST\n\nSECOND\n", out)
	})

	t.Run("start snippets prepended", func(t *testing.T) {
		sel := selection{start: []snippets.Snippet{{Template: "HEADER\n"}}}
		out := assemble("body", sel, nil)
		require.Equal(t, "HEADER\n\nbody", out)
	})

	t.Run("section snippet lands after anchor paragraph", func(t *testing.T) {
		text := "Intro.\n\nTerms apply here.\nMore terms.\n\nClosing."
		sel := selection{section: []snippets.Snippet{
			{Template: "INSERTED", SectionAnchor: "terms"},
		}}
		out := assemble(text, sel, nil)
		require.Equal(t, "Intro.\n\nTerms apply here.\nMore terms.\n\nINSERTED\n\nClosing.", out)
	})

	t.Run("section without anchor match falls back to end", func(t *testing.T) {
		sel := selection{section: []snippets.Snippet{
			{Template: "INSERTED", SectionAnchor: "nonexistent"},
		}}
		out := assemble("body", sel, nil)
		require.Equal(t, "body\n\nINSERTED\n", out)
	})

	t.Run("empty document", func(t *testing.T) {
		sel := selection{end: []snippets.Snippet{{Template: "ONLY\n"}}}
		require.Equal(t, "ONLY\n", assemble("", sel, nil))
	})

	t.Run("deterministic", func(t *testing.T) {
		sel := selection{
			start:   []snippets.Snippet{{Template: "S"}},
			section: []snippets.Snippet{{Template: "M", SectionAnchor: "body"}},
			end:     []snippets.Snippet{{Template: "E"}},
		}
		first := assemble("body text\n\ntail", sel, map[string]string{"k": "v"})
		for i := 0; i < 10; i++ {
			require.Equal(t, first, assemble("body text\n\ntail", sel, map[string]string{"k": "v"}))
		}
	})
}
