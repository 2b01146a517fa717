package context

import (
	gocontext "context"
	"fmt"

	"reactsql-mimic/internal/metadata"
	"reactsql-mimic/internal/retrieval"
)

// CandidateContext is the trimmed bundle of retrieved documents an agent's
// prompt is built from.
type CandidateContext struct {
	Schemas   []retrieval.Document `json:"schemas"`
	Examples  []retrieval.Document `json:"examples"`
	Templates []retrieval.Document `json:"templates"`
	Glossary  []retrieval.Document `json:"glossary"`
}

// trimItems greedily keeps items while their cumulative token cost stays
// within budget: order is preserved and the first
// item that would overflow the budget (and everything after it) is
// dropped.
func trimItems(items []retrieval.Document, budget int) ([]retrieval.Document, int) {
	var kept []retrieval.Document
	used := 0
	for _, item := range items {
		cost := CountTokens(item.Text)
		if used+cost > budget {
			break
		}
		kept = append(kept, item)
		used += cost
	}
	return kept, used
}

// TrimToBudget trims examples, then templates, then schemas, then
// glossary, each against the budget remaining after the previous section,
// in that fixed trim order: the most specific sections are trimmed first
// and so get the first claim on the budget, and glossary gets what is left.
func TrimToBudget(ctx CandidateContext, budget int) CandidateContext {
	remaining := budget

	examples, used := trimItems(ctx.Examples, remaining)
	remaining -= used

	templates, used := trimItems(ctx.Templates, remaining)
	remaining -= used

	schemas, used := trimItems(ctx.Schemas, remaining)
	remaining -= used

	glossary, _ := trimItems(ctx.Glossary, remaining)

	return CandidateContext{Schemas: schemas, Examples: examples, Templates: templates, Glossary: glossary}
}

// Builder assembles a CandidateContext for a question from a metadata
// catalog plus a hybrid retriever.
type Builder struct {
	Catalog        *metadata.Catalog
	Hybrid         *retrieval.Hybrid
	TopK           int
	ExamplesPerQ   int
	TemplatesPerQ  int
	TokenBudget    int
}

func NewBuilder(catalog *metadata.Catalog, hybrid *retrieval.Hybrid) *Builder {
	return &Builder{Catalog: catalog, Hybrid: hybrid, TopK: 8, ExamplesPerQ: 4, TemplatesPerQ: 3, TokenBudget: 3500}
}

func hitsToDocs(hits []metadata.Hit, docType string) []retrieval.Document {
	out := make([]retrieval.Document, 0, len(hits))
	for _, h := range hits {
		out = append(out, retrieval.Document{ID: h.ID, Text: h.Text, Type: docType, Score: h.Score, Metadata: h.Fields})
	}
	return out
}

// composeGlossary merges the general glossary and the four concept-tagged
// buckets (diagnosis/procedure/column_value/label_intent), only including
// a bucket when the question's keyword-detected intent says to, or a local
// metadata store directly matched it.
func composeGlossary(question string, general, diagnosis, procedure, column, label []retrieval.Document, localDiagPresent, localProcPresent, localColPresent, localLabelPresent bool, intent retrieval.SearchIntent, topK int) []retrieval.Document {
	filterBucket := func(hits []retrieval.Document, present, intentFlag bool, minAbs, ratio, overlap float64) []retrieval.Document {
		if !present && !intentFlag {
			return nil
		}
		return retrieval.FilterHits(hits, retrieval.FilterOptions{
			MaxItems: 2, MinAbsScore: minAbs, RelativeRatio: ratio,
			Query: question, MinLexicalOverlap: overlap,
			AllowFallback: present || intentFlag,
		})
	}

	diagHits := filterBucket(diagnosis, localDiagPresent, intent.Diagnosis, 0.08, 0.70, 0.06)
	procHits := filterBucket(procedure, localProcPresent, intent.Procedure, 0.08, 0.70, 0.06)
	colHits := filterBucket(column, localColPresent, intent.ColumnValue, 0.08, 0.70, 0.05)
	labelHits := filterBucket(label, localLabelPresent, intent.LabelIntent, 0.08, 0.65, 0.05)

	specializedCount := len(diagHits) + len(procHits) + len(colHits) + len(labelHits)
	generalMax := 1
	minAbs, ratio, overlap := 0.06, 0.75, 0.10
	if specializedCount == 0 {
		generalMax = topK
		if generalMax < 2 {
			generalMax = 2
		}
		if generalMax > 3 {
			generalMax = 3
		}
		minAbs, ratio, overlap = 0.03, 0.60, 0.05
	}
	generalHits := retrieval.FilterHits(general, retrieval.FilterOptions{
		MaxItems: generalMax, MinAbsScore: minAbs, RelativeRatio: ratio,
		Query: question, MinLexicalOverlap: overlap,
		AllowFallback: specializedCount == 0,
	})

	totalHits := len(diagHits) + len(procHits) + len(colHits) + len(labelHits) + len(generalHits)
	if totalHits <= 0 {
		return nil
	}
	targetK := topK
	if totalHits < targetK {
		targetK = totalHits
	}
	return retrieval.MergeHits([][]retrieval.Document{diagHits, procHits, labelHits, colHits, generalHits}, targetK)
}

// Build assembles and budget-trims the full CandidateContext for question.
func (b *Builder) Build(ctx gocontext.Context, question string) (CandidateContext, error) {
	schemaHits, err := b.Hybrid.Search(ctx, question, "schema", b.TopK)
	if err != nil {
		return CandidateContext{}, fmt.Errorf("context: schema search: %w", err)
	}
	exampleHits, err := b.Hybrid.Search(ctx, question, "example", b.ExamplesPerQ)
	if err != nil {
		return CandidateContext{}, fmt.Errorf("context: example search: %w", err)
	}
	templateHits, err := b.Hybrid.Search(ctx, question, "template", b.TemplatesPerQ)
	if err != nil {
		return CandidateContext{}, fmt.Errorf("context: template search: %w", err)
	}
	generalGlossary, err := b.Hybrid.Search(ctx, question, "glossary", b.TopK)
	if err != nil {
		return CandidateContext{}, fmt.Errorf("context: glossary search: %w", err)
	}

	intent := retrieval.DetectSearchIntent(question)

	var localDiag, localProc, localCol, localLabel []retrieval.Document
	if b.Catalog != nil {
		if b.Catalog.DiagnosisMap != nil {
			localDiag = hitsToDocs(b.Catalog.DiagnosisMap.Match(question), "diagnosis_map")
		}
		if b.Catalog.ProcedureMap != nil {
			localProc = hitsToDocs(b.Catalog.ProcedureMap.Match(question), "procedure_map")
		}
		if b.Catalog.ColumnValue != nil {
			localCol = hitsToDocs(b.Catalog.ColumnValue.Match(question), "column_value")
		}
		if b.Catalog.LabelIntent != nil {
			localLabel = hitsToDocs(b.Catalog.LabelIntent.Match(question), "label_intent")
		}
	}

	diagHybrid, err := b.Hybrid.Search(ctx, question, "diagnosis_map", b.TopK)
	if err != nil {
		return CandidateContext{}, fmt.Errorf("context: diagnosis_map search: %w", err)
	}
	procHybrid, err := b.Hybrid.Search(ctx, question, "procedure_map", b.TopK)
	if err != nil {
		return CandidateContext{}, fmt.Errorf("context: procedure_map search: %w", err)
	}
	colHybrid, err := b.Hybrid.Search(ctx, question, "column_value", b.TopK)
	if err != nil {
		return CandidateContext{}, fmt.Errorf("context: column_value search: %w", err)
	}
	labelHybrid, err := b.Hybrid.Search(ctx, question, "label_intent", b.TopK)
	if err != nil {
		return CandidateContext{}, fmt.Errorf("context: label_intent search: %w", err)
	}

	mergeK := b.TopK
	if mergeK < 3 {
		mergeK = 3
	}
	diag := retrieval.MergeHits([][]retrieval.Document{localDiag, diagHybrid}, mergeK)
	proc := retrieval.MergeHits([][]retrieval.Document{localProc, procHybrid}, mergeK)
	col := retrieval.MergeHits([][]retrieval.Document{localCol, colHybrid}, mergeK)
	label := retrieval.MergeHits([][]retrieval.Document{localLabel, labelHybrid}, mergeK)

	glossary := composeGlossary(question, generalGlossary, diag, proc, col, label,
		len(localDiag) > 0, len(localProc) > 0, len(localCol) > 0, len(localLabel) > 0, intent, b.TopK)

	full := CandidateContext{Schemas: schemaHits, Examples: exampleHits, Templates: templateHits, Glossary: glossary}
	return TrimToBudget(full, b.TokenBudget), nil
}
