package config

import (
	"testing"

	driver "github.com/go-sql-driver/mysql"
)

func TestDatabaseDSN(t *testing.T) {
	t.Setenv("DB_USER", "retail")
	t.Setenv("DB_PASSWORD", "p@ss:word")
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "retail")

	cfg, err := driver.ParseDSN(databaseDSN())
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cfg.Net != "tcp" || cfg.Addr != "10.0.0.5:3306" || cfg.Passwd != "p@ss:word" {
		t.Fatalf("unexpected address or credentials: %s %s %q", cfg.Net, cfg.Addr, cfg.Passwd)
	}
	if !cfg.ParseTime || !cfg.MultiStatements {
		t.Fatalf("expected parseTime and multiStatements")
	}
	// every pooled connection must start in READ COMMITTED, not just the first
	if got := cfg.Params["transaction_isolation"]; got != "'READ-COMMITTED'" {
		t.Fatalf("expected READ-COMMITTED isolation, got %q", got)
	}

	t.Setenv("DB_HOST", "/cloudsql/project:region:instance")
	cfg, err = driver.ParseDSN(databaseDSN())
	if err != nil {
		t.Fatalf("ParseDSN unix: %v", err)
	}
	if cfg.Net != "unix" || cfg.Addr != "/cloudsql/project:region:instance" {
		t.Fatalf("expected unix socket, got %s %s", cfg.Net, cfg.Addr)
	}
}
