// Command querycli is a oneshot text-to-SQL driver: it runs a single
// clinical question through the full internal/inference orchestrator and
// prints the resulting SQL and row sample with ANSI stage banners.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reactsql-mimic/internal/adapter"
	"reactsql-mimic/internal/audit"
	contextpkg "reactsql-mimic/internal/context"
	"reactsql-mimic/internal/embed"
	"reactsql-mimic/internal/inference"
	"reactsql-mimic/internal/kvstore"
	"reactsql-mimic/internal/llm"
	"reactsql-mimic/internal/logger"
	"reactsql-mimic/internal/metadata"
	"reactsql-mimic/internal/retrieval"
	"reactsql-mimic/internal/vectorindex"
)

const (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"
	green = "\033[32m"
	cyan  = "\033[36m"
	red   = "\033[31m"
)

func header(title string) {
	line := strings.Repeat("━", 60)
	fmt.Printf("\n%s%s%s\n", cyan+bold, line, reset)
	fmt.Printf("%s  %s%s\n", cyan+bold, title, reset)
	fmt.Printf("%s%s%s\n\n", cyan+bold, line, reset)
}

func main() {
	question := flag.String("question", "Show the first 10 patients admitted to the ICU", "Clinical question to answer")
	dbType := flag.String("db", "sqlite", "Target DB adapter type: sqlite|mysql|postgresql|oracle")
	sqlitePath := flag.String("sqlite-path", "var/mimic.db", "SQLite file path when -db=sqlite")
	metadataDir := flag.String("metadata-dir", "var/metadata", "Metadata catalog directory")
	modelType := flag.String("model", "deepseek-v3", "Model type (see internal/llm.ModelType)")
	flag.Parse()

	header("MIMIC-IV Text-to-SQL — Oneshot Query")

	catalog := metadata.NewCatalog()
	if err := catalog.LoadAll(*metadataDir); err != nil {
		fmt.Printf("%s✗ failed to load metadata catalog: %v%s\n", red, err, reset)
		os.Exit(1)
	}

	dbAdapter, err := adapter.NewAdapter(&adapter.DBConfig{Type: *dbType, FilePath: *sqlitePath})
	if err != nil {
		fmt.Printf("%s✗ failed to construct adapter: %v%s\n", red, err, reset)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := dbAdapter.Connect(ctx); err != nil {
		fmt.Printf("%s✗ failed to connect: %v%s\n", red, err, reset)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	modelConfig := llm.GetModelByType(llm.ModelType(*modelType))
	model, err := llm.CreateLLM(modelConfig)
	if err != nil {
		fmt.Printf("%s✗ failed to create LLM client: %v%s\n", red, err, reset)
		os.Exit(1)
	}

	embedder := embed.NewHashedEmbedder(128)
	index := vectorindex.NewMemoryIndex()
	corpus := retrieval.CatalogCorpus{Catalog: catalog}
	hybrid := retrieval.NewHybrid(index, embedder, corpus)
	builder := contextpkg.NewBuilder(catalog, hybrid)

	store, err := kvstore.NewJSONStore(filepath.Join("var", "cache", "demo_cache.json"))
	if err != nil {
		fmt.Printf("%s✗ failed to open demo cache: %v%s\n", red, err, reset)
		os.Exit(1)
	}
	defer store.Close()

	auditLog, err := audit.NewLog(filepath.Join("var", "logs", "events.jsonl"))
	if err != nil {
		fmt.Printf("%s✗ failed to open audit log: %v%s\n", red, err, reset)
		os.Exit(1)
	}
	costTracker := audit.NewCostTracker(filepath.Join("var", "logs", "cost_state.json"), inference.DefaultAppConfig().BudgetLimit)

	pipeline := &inference.Pipeline{
		LLM:     model,
		Builder: builder,
		DB:      dbAdapter,
		Audit:   auditLog,
		Cost:    costTracker,
		Records: inference.NewRecordStore(1000),
		Demo:    inference.DemoCache{Store: store},
		Config:  inference.LoadAppConfig(),
		Logger:  logger.NewLogger(10),
	}

	result, err := pipeline.Answer(ctx, *question)
	if err != nil {
		fmt.Printf("%s✗ query failed: %v%s\n", red, err, reset)
		os.Exit(1)
	}

	header("Result")
	fmt.Printf("%sMode:%s %s\n", dim, reset, result.Mode)
	fmt.Printf("%sSQL:%s\n%s\n\n", dim, reset, result.SQL)
	fmt.Printf("%s✓%s %d rows\n", green, reset, result.RowCount)

	sample := result.Rows
	if len(sample) > 5 {
		sample = sample[:5]
	}
	encoded, _ := json.MarshalIndent(sample, "", "  ")
	fmt.Println(string(encoded))
}
