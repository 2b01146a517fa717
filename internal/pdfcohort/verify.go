package pdfcohort

import (
	"regexp"
	"strings"

	"reactsql-mimic/internal/metadata"
)

var sqlTableRE = regexp.MustCompile(`(?i)SSO\.([A-Za-z0-9_]+)`)

// VerifySQL checks every SSO.<TABLE> reference in sql against the schema
// catalog. Per-column verification is deferred: the compiler only ever
// emits the table names it already validated when building signal
// templates.
func VerifySQL(catalog *metadata.Catalog, sql string) (bool, string) {
	if catalog == nil || catalog.Schema == nil {
		return true, "no catalog loaded for verification"
	}
	known := knownTables(catalog)
	if len(known) == 0 {
		return true, "schema catalog has no tables; skipping verification"
	}

	seen := map[string]bool{}
	for _, m := range sqlTableRE.FindAllStringSubmatch(sql, -1) {
		seen[strings.ToUpper(m[1])] = true
	}
	for table := range seen {
		if !known[table] {
			return false, "table '" + table + "' does not exist in schema catalog"
		}
	}
	return true, "integrity check passed"
}

func knownTables(catalog *metadata.Catalog) map[string]bool {
	out := map[string]bool{}
	for _, rec := range catalog.Schema.All() {
		out[strings.ToUpper(rec.ID)] = true
	}
	return out
}
