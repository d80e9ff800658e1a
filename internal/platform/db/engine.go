package db

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Engine names a supported database engine.
type Engine string

const (
	Postgres Engine = "postgresql"
	MySQL    Engine = "mysql"
	SQLite   Engine = "sqlite"
)

// ParseEngine accepts the engine names used in configuration, including the
// common aliases postgres, pg, mariadb and sqlite3.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("%w: unsupported database type %q", ErrConnection, s)
}

// ConnConfig describes one database to connect to. For SQLite only Database
// is used and holds a file path or ":memory:".
type ConnConfig struct {
	Engine   Engine
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// SSLMode follows the postgres vocabulary (disable, require, verify-ca,
	// verify-full). Empty means require for network engines.
	SSLMode string
}

func (c ConnConfig) sslMode() string {
	if c.SSLMode == "" {
		return "require"
	}
	return c.SSLMode
}

func (c ConnConfig) port(def int) int {
	if c.Port == 0 {
		return def
	}
	return c.Port
}

func (c ConnConfig) validate() error {
	if c.Database == "" {
		return fmt.Errorf("%w: configuration error: database is required", ErrConnection)
	}
	if c.Engine != SQLite && c.Host == "" {
		return fmt.Errorf("%w: configuration error: host is required for %s", ErrConnection, c.Engine)
	}
	return nil
}

// open returns a *sql.DB for cfg limited to a single connection. It does not
// touch the network; callers ping.
func open(cfg ConnConfig) (*sql.DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Engine {
	case Postgres:
		db, err = openPostgres(cfg)
	case MySQL:
		db, err = openMySQL(cfg)
	case SQLite:
		db, err = openSQLite(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported database type %q", ErrConnection, cfg.Engine)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	// One connection per alias. This also keeps a ":memory:" sqlite database
	// alive for the lifetime of the handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

func openPostgres(cfg ConnConfig) (*sql.DB, error) {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.port(5432))),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {cfg.sslMode()}}.Encode(),
	}
	connCfg, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	return stdlib.OpenDB(*connCfg), nil
}

func openMySQL(cfg ConnConfig) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.port(3306)))
	mc.DBName = cfg.Database
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.ParseTime = true
	mc.Collation = "utf8mb4_general_ci"
	mc.TLSConfig = mysqlTLS(cfg.sslMode())

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// mysqlTLS maps a postgres-style sslmode onto the driver's tls parameter.
func mysqlTLS(mode string) string {
	switch mode {
	case "disable":
		return "false"
	case "require", "prefer", "allow":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return "true"
	}
	return "preferred"
}

func openSQLite(cfg ConnConfig) (*sql.DB, error) {
	return sql.Open("sqlite3", sqliteDSN(cfg.Database))
}

func sqliteDSN(database string) string {
	sep := "?"
	if strings.Contains(database, "?") {
		sep = "&"
	}
	return database + sep + "_foreign_keys=on"
}
