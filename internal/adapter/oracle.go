package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// OracleConfig Oracle connection config. DriverName names the
// database/sql driver registered for Oracle (e.g. "godror"); live Oracle
// connectivity is out of scope and no example repo in the retrieval
// corpus imports a driver for it, so this adapter never blank-imports
// one — the caller's main package does that, the same way the other
// adapters in this module blank-import theirs, and OracleAdapter only
// needs the driver name to call sql.Open.
type OracleConfig struct {
	DriverName string // defaults to "godror" if empty
	DSN        string // full connect descriptor; takes precedence over the fields below
	Host       string
	Port       int
	ServiceName string
	User       string
	Password   string
	Schema     string // SSO schema/session default, set via ALTER SESSION
	MaxRows    int    // row-cap applied to every query via an outer ROWNUM wrapper; 0 means the default of 1000, a negative value disables the cap
}

// OracleAdapter targets the MIMIC-IV Oracle deployment: it runs every
// query under the session's current schema and an outer ROWNUM row cap, the
// two guarantees the rest of the module (policy gate, postprocess
// row-cap rule) assumes the DB layer honors at the connection level too.
type OracleAdapter struct {
	db     *sql.DB
	config *OracleConfig
}

// NewOracleAdapter creates an Oracle adapter. config.DriverName defaults
// to "godror" (the driver the rest of the Go ecosystem uses for Oracle)
// but is never imported here.
func NewOracleAdapter(config *OracleConfig) *OracleAdapter {
	if config.DriverName == "" {
		config.DriverName = "godror"
	}
	if config.MaxRows == 0 {
		config.MaxRows = 1000
	}
	return &OracleAdapter{config: config}
}

func (a *OracleAdapter) dsn() string {
	if a.config.DSN != "" {
		return a.config.DSN
	}
	return fmt.Sprintf(`user="%s" password="%s" connectString="%s:%d/%s"`,
		a.config.User, a.config.Password, a.config.Host, a.config.Port, a.config.ServiceName)
}

// Connect opens the connection and, if config.Schema is set, switches the
// session's current schema so unqualified table references resolve
// against MIMIC-IV's SSO schema without every query needing an
// SSO.-qualified prefix.
func (a *OracleAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open(a.config.DriverName, a.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if a.config.Schema != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER SESSION SET CURRENT_SCHEMA = %s", a.config.Schema)); err != nil {
			db.Close()
			return fmt.Errorf("failed to set session schema: %w", err)
		}
	}
	a.db = db
	return nil
}

// Close closes connection
func (a *OracleAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// ExecuteQuery executes query, applying the adapter's ROWNUM row-cap when
// the caller's SQL doesn't already carry its own FETCH FIRST/ROWNUM
// limit (the postprocess rule engine normally adds one first; this is
// the adapter-level backstop in case it didn't).
func (a *OracleAdapter) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	start := time.Now()

	rows, err := a.db.QueryContext(ctx, capRows(query, a.config.MaxRows))
	if err != nil {
		return &QueryResult{
			Error:         err.Error(),
			ExecutionTime: time.Since(start).Milliseconds(),
		}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{})
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		Columns:       columns,
		Rows:          result,
		RowCount:      len(result),
		ExecutionTime: time.Since(start).Milliseconds(),
	}, nil
}

// GetDatabaseType gets database type
func (a *OracleAdapter) GetDatabaseType() string {
	return "Oracle"
}

// GetDatabaseVersion gets database version
func (a *OracleAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	result, err := a.ExecuteQuery(ctx, "SELECT banner AS version FROM v$version WHERE ROWNUM = 1")
	if err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf(result.Error)
	}
	if len(result.Rows) > 0 {
		if version, ok := result.Rows[0]["version"].(string); ok {
			return version, nil
		}
	}
	return "unknown", nil
}

// DryRunSQL validates SQL syntax via EXPLAIN PLAN FOR, Oracle's
// equivalent of the other adapters' EXPLAIN-based dry run.
func (a *OracleAdapter) DryRunSQL(ctx context.Context, sql string) error {
	_, err := a.db.ExecContext(ctx, fmt.Sprintf("EXPLAIN PLAN FOR %s", sql))
	return err
}

// capRows wraps query as SELECT * FROM (query) WHERE ROWNUM <= n unless it
// already carries its own FETCH FIRST or ROWNUM clause, mirroring the postprocess rule
// engine's row-cap rewrite at the connection boundary as a backstop.
func capRows(query string, maxRows int) string {
	if maxRows <= 0 {
		return query
	}
	upper := strings.ToUpper(query)
	if strings.Contains(upper, "FETCH FIRST") || strings.Contains(upper, "ROWNUM") {
		return query
	}
	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, maxRows)
}
