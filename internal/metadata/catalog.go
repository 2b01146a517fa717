package metadata

import "path/filepath"

// Catalog bundles every corpus loader the retriever and rule engines need,
// one FileStore per document type named in the data model.
type Catalog struct {
	Schema       *FileStore
	Examples     *FileStore
	Templates    *FileStore
	Glossary     *FileStore
	DiagnosisMap *FileStore
	ProcedureMap *FileStore
	ColumnValue  *FileStore
	LabelIntent  *FileStore
	Comorbidity  *ComorbidityStore
}

// NewCatalog returns an empty Catalog; call LoadAll to populate it from
// baseDir (normally the configured var/metadata directory).
func NewCatalog() *Catalog {
	return &Catalog{
		Schema:       NewFileStore(),
		Examples:     NewFileStore(),
		Templates:    NewFileStore(),
		Glossary:     NewFileStore(),
		DiagnosisMap: NewFileStore(),
		ProcedureMap: NewFileStore(),
		ColumnValue:  NewFileStore(),
		LabelIntent:  NewFileStore(),
		Comorbidity:  NewComorbidityStore(),
	}
}

// LoadAll loads every corpus file under baseDir using the canonical file
// names from the persisted-state layout. Missing files are tolerated for
// everything except the schema catalog (schema is load-bearing for every
// downstream rule).
func (c *Catalog) LoadAll(baseDir string) error {
	loaders := []struct {
		store    *FileStore
		filename string
		required bool
	}{
		{c.Schema, "schema_catalog.json", true},
		{c.Examples, "examples.json", false},
		{c.Templates, "templates.json", false},
		{c.Glossary, "glossary.json", false},
		{c.DiagnosisMap, "diagnosis_map.json", false},
		{c.ProcedureMap, "procedure_map.json", false},
		{c.ColumnValue, "column_values.json", false},
		{c.LabelIntent, "label_intents.json", false},
	}
	for _, l := range loaders {
		path := filepath.Join(baseDir, l.filename)
		if err := l.store.Load(path); err != nil {
			if l.required {
				return err
			}
			continue
		}
	}
	_ = c.Comorbidity.Load(filepath.Join(baseDir, "cohort_comorbidity_specs.json"))
	return nil
}
