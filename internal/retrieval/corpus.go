package retrieval

import "reactsql-mimic/internal/metadata"

// CatalogCorpus adapts a metadata.Catalog into the LexicalCorpus the BM25
// side of Hybrid.Search needs: one FileStore per document type, matching
// the same docType strings context.Builder asks Hybrid for.
type CatalogCorpus struct {
	Catalog *metadata.Catalog
}

// storeFor returns the FileStore backing docType, or nil for types the
// catalog does not carry a dedicated store for (schema/glossary's
// concept-tagged buckets reuse the same four stores Builder already
// special-cases).
func (c CatalogCorpus) storeFor(docType string) *metadata.FileStore {
	switch docType {
	case "schema":
		return c.Catalog.Schema
	case "example":
		return c.Catalog.Examples
	case "template":
		return c.Catalog.Templates
	case "glossary":
		return c.Catalog.Glossary
	case "diagnosis_map":
		return c.Catalog.DiagnosisMap
	case "procedure_map":
		return c.Catalog.ProcedureMap
	case "column_value":
		return c.Catalog.ColumnValue
	case "label_intent":
		return c.Catalog.LabelIntent
	default:
		return nil
	}
}

// DocumentsByType returns every record of docType as a Document, giving
// BM25Rank its full corpus to build an inverted index over.
func (c CatalogCorpus) DocumentsByType(docType string) []Document {
	store := c.storeFor(docType)
	if store == nil {
		return nil
	}
	records := store.All()
	docs := make([]Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, Document{ID: rec.ID, Text: rec.Text, Type: docType, Metadata: rec.Fields})
	}
	return docs
}
