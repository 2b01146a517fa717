// Command vizcli runs a SQL query against a configured adapter and feeds
// the result through the visualization planner, printing the
// recommended chart plans (or the statistical fallback insight) as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"reactsql-mimic/internal/adapter"
	"reactsql-mimic/internal/chart"
)

func main() {
	dbType := flag.String("db", "sqlite", "Target DB adapter type: sqlite|mysql|postgresql|oracle")
	sqlitePath := flag.String("sqlite-path", "var/mimic.db", "SQLite file path when -db=sqlite")
	question := flag.String("question", "", "The clinical question the SQL answers, used for intent detection")
	sqlText := flag.String("sql", "", "SQL query to execute and visualize")
	flag.Parse()

	if *sqlText == "" {
		fmt.Fprintln(os.Stderr, "-sql is required")
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

	qr, err := dbAdapter.ExecuteQuery(ctx, *sqlText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}

	df := chart.NewDataFrame(qr.Columns, qr.Rows)
	resp := chart.Visualize(*question, *sqlText, df)

	encoded, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}
