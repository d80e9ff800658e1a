package db

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hcqa/hcqa/internal/platform/harness"
)

var schemaDir = filepath.Join("..", "..", "..", "data", "sql_scripts")

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newSQLiteManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m := NewManager(opts)
	if err := m.Connect(context.Background(), ConnConfig{Engine: SQLite, Database: ":memory:"}, "test"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(m.CloseAll)
	return m
}

func newSchemaManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m := newSQLiteManager(t, opts)
	if _, err := NewMigrator(m, "test", schemaDir).Up(context.Background()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return m
}

func TestConnect_SQLite(t *testing.T) {
	m := newSQLiteManager(t, Options{})

	if m.Current() != "test" {
		t.Errorf("expected current alias 'test', got %q", m.Current())
	}
	if got := m.Aliases(); len(got) != 1 || got[0] != "test" {
		t.Errorf("unexpected aliases: %v", got)
	}

	c, err := m.Conn("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Engine != SQLite || c.Database != ":memory:" {
		t.Errorf("unexpected conn: %+v", c)
	}
}

func TestConnect_DefaultAlias(t *testing.T) {
	m := NewManager(Options{})
	defer m.CloseAll()

	if err := m.Connect(context.Background(), ConnConfig{Engine: SQLite, Database: ":memory:"}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Current() != DefaultAlias {
		t.Errorf("expected %q, got %q", DefaultAlias, m.Current())
	}
	if _, err := m.Query(context.Background(), "", "SELECT 1 AS one"); err != nil {
		t.Errorf("expected empty alias to resolve to default: %v", err)
	}
}

func TestConnect_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  ConnConfig
	}{
		{"unsupported engine", ConnConfig{Engine: "oracle", Host: "db", Database: "x"}},
		{"missing database", ConnConfig{Engine: SQLite}},
		{"missing host", ConnConfig{Engine: Postgres, Database: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(Options{})
			err := m.Connect(context.Background(), tt.cfg, "x")
			if !errors.Is(err, ErrConnection) {
				t.Fatalf("expected ErrConnection, got %v", err)
			}
			if m.Current() != "" {
				t.Errorf("failed connect must not set current alias, got %q", m.Current())
			}
		})
	}
}

func TestConnect_FailureGoesToReporter(t *testing.T) {
	rec := &harness.Recorder{}
	m := NewManager(Options{Reporter: rec})

	err := m.Connect(context.Background(), ConnConfig{Engine: "oracle", Host: "h", Database: "d"}, "x")
	if err == nil {
		t.Fatal("expected error to be returned after reporting")
	}
	if !rec.Failed() {
		t.Fatal("expected reporter to record the failure")
	}
	if !strings.Contains(rec.Failures[0], "unsupported database type") {
		t.Errorf("unexpected failure message: %s", rec.Failures[0])
	}
}

func TestConnect_ReplacesAlias(t *testing.T) {
	m := newSQLiteManager(t, Options{})
	ctx := context.Background()

	if _, err := m.Exec(ctx, "test", "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := m.Connect(ctx, ConnConfig{Engine: SQLite, Database: ":memory:"}, "test"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if _, err := m.Query(ctx, "test", "SELECT * FROM t"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected fresh database after reconnect, got %v", err)
	}
}

func TestDisconnect(t *testing.T) {
	m := newSQLiteManager(t, Options{})

	m.Disconnect("missing")
	if m.Current() != "test" {
		t.Error("disconnecting an unknown alias must not touch the current alias")
	}

	m.Disconnect("test")
	if m.Current() != "" {
		t.Errorf("expected no current alias, got %q", m.Current())
	}
	if _, err := m.Query(context.Background(), "test", "SELECT 1"); !errors.Is(err, ErrConnection) {
		t.Errorf("expected ErrConnection after disconnect, got %v", err)
	}
}

func TestCloseAll(t *testing.T) {
	m := NewManager(Options{})
	ctx := context.Background()
	for _, alias := range []string{"a", "b", "c"} {
		if err := m.Connect(ctx, ConnConfig{Engine: SQLite, Database: ":memory:"}, alias); err != nil {
			t.Fatalf("connect %s: %v", alias, err)
		}
	}
	if m.Current() != "c" {
		t.Errorf("expected last connected alias to be current, got %q", m.Current())
	}

	m.CloseAll()
	if len(m.Aliases()) != 0 {
		t.Errorf("expected no aliases, got %v", m.Aliases())
	}
	if m.Current() != "" {
		t.Errorf("expected no current alias, got %q", m.Current())
	}
}

func TestParseEngine(t *testing.T) {
	tests := []struct {
		in   string
		want Engine
		ok   bool
	}{
		{"postgresql", Postgres, true},
		{"Postgres", Postgres, true},
		{"pg", Postgres, true},
		{"mysql", MySQL, true},
		{"MariaDB", MySQL, true},
		{"sqlite", SQLite, true},
		{"sqlite3", SQLite, true},
		{"oracle", "", false},
	}
	for _, tt := range tests {
		got, err := ParseEngine(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseEngine(%q) = %q, %v", tt.in, got, err)
		}
		if !tt.ok && !errors.Is(err, ErrConnection) {
			t.Errorf("ParseEngine(%q): expected ErrConnection, got %v", tt.in, err)
		}
	}
}

func TestMySQLTLS(t *testing.T) {
	tests := map[string]string{
		"disable":     "false",
		"require":     "skip-verify",
		"verify-ca":   "true",
		"verify-full": "true",
		"":            "preferred",
	}
	for mode, want := range tests {
		if got := mysqlTLS(mode); got != want {
			t.Errorf("mysqlTLS(%q) = %q, want %q", mode, got, want)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN(":memory:"); got != ":memory:?_foreign_keys=on" {
		t.Errorf("unexpected dsn: %s", got)
	}
	if got := sqliteDSN("file:test.db?cache=shared"); got != "file:test.db?cache=shared&_foreign_keys=on" {
		t.Errorf("unexpected dsn: %s", got)
	}
}

func TestConnConfig_SSLModeDefault(t *testing.T) {
	if (ConnConfig{}).sslMode() != "require" {
		t.Error("expected TLS to be required by default")
	}
	if (ConnConfig{SSLMode: "disable"}).sslMode() != "disable" {
		t.Error("expected explicit sslmode to be kept")
	}
}
