package adapter

import "testing"

func TestNewOracleAdapter_DefaultsDriverNameAndMaxRows(t *testing.T) {
	a := NewOracleAdapter(&OracleConfig{})
	if a.config.DriverName != "godror" {
		t.Fatalf("DriverName = %q, want godror default", a.config.DriverName)
	}
	if a.config.MaxRows != 1000 {
		t.Fatalf("MaxRows = %d, want default 1000", a.config.MaxRows)
	}
}

func TestNewOracleAdapter_KeepsExplicitOverrides(t *testing.T) {
	a := NewOracleAdapter(&OracleConfig{DriverName: "custom", MaxRows: 50})
	if a.config.DriverName != "custom" || a.config.MaxRows != 50 {
		t.Fatalf("unexpected config: %+v", a.config)
	}
}

func TestOracleAdapter_DSN_PrefersExplicitDSN(t *testing.T) {
	a := NewOracleAdapter(&OracleConfig{DSN: "localhost:1521/ORCLPDB1"})
	if got := a.dsn(); got != "localhost:1521/ORCLPDB1" {
		t.Fatalf("dsn() = %q", got)
	}
}

func TestOracleAdapter_DSN_BuildsFromFieldsWhenDSNEmpty(t *testing.T) {
	a := NewOracleAdapter(&OracleConfig{User: "mimic", Password: "secret", Host: "db.internal", Port: 1521, ServiceName: "ORCLPDB1"})
	got := a.dsn()
	want := `user="mimic" password="secret" connectString="db.internal:1521/ORCLPDB1"`
	if got != want {
		t.Fatalf("dsn() = %q, want %q", got, want)
	}
}

func TestCapRows_WrapsPlainQuery(t *testing.T) {
	got := capRows("SELECT * FROM admissions", 1000)
	want := "SELECT * FROM (SELECT * FROM admissions) WHERE ROWNUM <= 1000"
	if got != want {
		t.Fatalf("capRows = %q, want %q", got, want)
	}
}

func TestCapRows_LeavesExistingRowLimitAlone(t *testing.T) {
	withRownum := "SELECT * FROM admissions WHERE ROWNUM <= 10"
	if got := capRows(withRownum, 1000); got != withRownum {
		t.Fatalf("expected query with its own ROWNUM clause untouched, got %q", got)
	}
	withFetch := "SELECT * FROM admissions FETCH FIRST 10 ROWS ONLY"
	if got := capRows(withFetch, 1000); got != withFetch {
		t.Fatalf("expected query with its own FETCH FIRST clause untouched, got %q", got)
	}
}

func TestCapRows_ZeroMaxRowsDisablesCap(t *testing.T) {
	query := "SELECT * FROM admissions"
	if got := capRows(query, 0); got != query {
		t.Fatalf("expected capRows to be a no-op when maxRows <= 0, got %q", got)
	}
}
