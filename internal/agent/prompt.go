package agent

import (
	"fmt"
	"strings"

	contextpkg "reactsql-mimic/internal/context"
	"reactsql-mimic/internal/retrieval"
)

func renderDocs(label string, docs []retrieval.Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", label)
	for _, d := range docs {
		fmt.Fprintf(&b, "- [%s] %s\n", d.ID, d.Text)
	}
	return b.String()
}

// RenderContext turns a CandidateContext into the flat prompt block every
// agent embeds, in the same most-specific-first order the context
// builder trims in (examples, templates, schemas, glossary).
func RenderContext(ctx contextpkg.CandidateContext) string {
	var parts []string
	for _, s := range []string{
		renderDocs("Example queries", ctx.Examples),
		renderDocs("SQL templates", ctx.Templates),
		renderDocs("Schema", ctx.Schemas),
		renderDocs("Glossary", ctx.Glossary),
	} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
