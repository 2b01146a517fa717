// Command cohortcli drives the cohort simulation engine from the command
// line: compile a parameter set into the shared CTE SQL bundle, run it
// against a configured adapter, and print the baseline/simulated metric
// comparison as JSON. A single-purpose driver rather than a long-running
// server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"reactsql-mimic/internal/adapter"
	"reactsql-mimic/internal/cohort"
	"reactsql-mimic/internal/metadata"
)

func main() {
	dbType := flag.String("db", "sqlite", "Target DB adapter type: sqlite|mysql|postgresql|oracle")
	sqlitePath := flag.String("sqlite-path", "var/mimic.db", "SQLite file path when -db=sqlite")
	metadataDir := flag.String("metadata-dir", "var/metadata", "Metadata catalog directory")

	readmitDays := flag.Int("readmit-days", 30, "Readmission window in days")
	ageThreshold := flag.Int("age-threshold", 65, "Age threshold in years")
	losThreshold := flag.Int("los-threshold", 7, "Long-stay LOS threshold in days")
	gender := flag.String("gender", "all", "Gender filter: all|M|F")
	icuOnly := flag.Bool("icu-only", false, "Restrict to ICU stays")
	entryFilter := flag.String("entry-filter", "all", "Admission entry filter")
	outcomeFilter := flag.String("outcome-filter", "all", "Outcome filter")
	baseline := flag.Bool("baseline", true, "Compare against DefaultParams as the baseline")
	flag.Parse()

	catalog := metadata.NewCatalog()
	if err := catalog.LoadAll(*metadataDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load metadata catalog: %v\n", err)
		os.Exit(1)
	}

	diagMap := metadata.NewDiagnosisMapStore()

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

	engine := cohort.NewEngine(dbAdapter, catalog.Comorbidity, diagMap)

	params := cohort.Params{
		ReadmitDays:   *readmitDays,
		AgeThreshold:  *ageThreshold,
		LOSThreshold:  *losThreshold,
		Gender:        *gender,
		ICUOnly:       *icuOnly,
		EntryFilter:   *entryFilter,
		OutcomeFilter: *outcomeFilter,
	}

	result, err := engine.Simulate(ctx, params, *baseline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}
