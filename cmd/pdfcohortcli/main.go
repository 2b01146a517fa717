// Command pdfcohortcli runs the PDF cohort pipeline against an
// already-extracted text file (PDF parsing itself is an external
// boundary): extract conditions, compile the CTE cascade, verify it
// against the schema catalog, execute it, and print the funnel as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"reactsql-mimic/internal/adapter"
	"reactsql-mimic/internal/kvstore"
	"reactsql-mimic/internal/llm"
	"reactsql-mimic/internal/metadata"
	"reactsql-mimic/internal/pdfcohort"
)

// passthroughText treats the input file as already-extracted page text.
type passthroughText struct{}

func (passthroughText) ExtractText(ctx context.Context, fileContent []byte) (string, error) {
	return string(fileContent), nil
}

// noAssets reports an asset-free document; table/figure extraction needs
// the upstream PDF tooling this driver deliberately runs without.
type noAssets struct{}

func (noAssets) ExtractAssets(ctx context.Context, fileContent []byte) (pdfcohort.Assets, error) {
	return pdfcohort.Assets{}, nil
}

func main() {
	inputPath := flag.String("input", "", "Path to the extracted paper text (plain text)")
	dbType := flag.String("db", "sqlite", "Target DB adapter type: sqlite|mysql|postgresql|oracle")
	sqlitePath := flag.String("sqlite-path", "var/mimic.db", "SQLite file path when -db=sqlite")
	metadataDir := flag.String("metadata-dir", "var/metadata", "Metadata catalog directory")
	modelType := flag.String("model", "deepseek-v3", "Model type (see internal/llm.ModelType)")
	relax := flag.Bool("relax", true, "Allow the relaxation pass on a zero-row cohort")
	reuse := flag.Bool("reuse", true, "Serve a cached result for identical canonical text")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "-input is required")
		os.Exit(1)
	}
	fileContent, err := os.ReadFile(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input: %v\n", err)
		os.Exit(1)
	}

	catalog := metadata.NewCatalog()
	if err := catalog.LoadAll(*metadataDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load metadata catalog: %v\n", err)
		os.Exit(1)
	}

	dbAdapter, err := adapter.NewAdapter(&adapter.DBConfig{Type: *dbType, FilePath: *sqlitePath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct adapter: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := dbAdapter.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	model, err := llm.CreateLLM(llm.GetModelByType(llm.ModelType(*modelType)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create LLM client: %v\n", err)
		os.Exit(1)
	}

	cacheStore, err := kvstore.NewJSONStore(filepath.Join("var", "cache", "pdf_cohort_cache.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open cohort cache: %v\n", err)
		os.Exit(1)
	}
	defer cacheStore.Close()

	pipeline := &pdfcohort.Pipeline{
		LLM:     model,
		Signals: pdfcohort.NewSignalMap(),
		Catalog: catalog,
		DB:      dbAdapter,
		Cache:   pdfcohort.Cache{Backend: cacheStore},
	}

	result, err := pipeline.Analyze(ctx, fileContent, passthroughText{}, noAssets{}, pdfcohort.Options{
		RelaxMode:     *relax,
		ReuseExisting: *reuse,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	encoded, _ := json.MarshalIndent(map[string]any{
		"cohort_definition": result.CohortDefinition,
		"mapped_variables":  result.MappedVariables,
		"sql":               result.CompiledSQL,
		"row_count":         result.RowCount,
		"step_counts":       result.StepCounts,
		"patient_level":     result.PatientLevel,
		"warnings":          result.Warnings,
	}, "", "  ")
	fmt.Println(string(encoded))
}
