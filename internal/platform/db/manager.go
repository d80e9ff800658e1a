package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hcqa/hcqa/internal/platform/harness"
)

// DefaultAlias is used when a caller passes an empty alias.
const DefaultAlias = "default"

// Options configures a Manager.
type Options struct {
	Logger zerolog.Logger
	// Reporter, when set, receives every failure via Fatalf. Pass the
	// current *testing.T to fail the test instead of handling errors.
	Reporter harness.Reporter
	// Now defaults to time.Now.
	Now func() time.Time
}

// Conn is a live connection registered under an alias.
type Conn struct {
	Alias    string
	Engine   Engine
	Database string
	db       *sql.DB
}

// Manager holds database connections keyed by alias. It is not safe for
// concurrent use; each test owns its Manager.
type Manager struct {
	conns    map[string]*Conn
	current  string
	logger   zerolog.Logger
	reporter harness.Reporter
	now      func() time.Time
}

// NewManager returns a Manager with no connections.
func NewManager(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		conns:    make(map[string]*Conn),
		logger:   opts.Logger,
		reporter: opts.Reporter,
		now:      now,
	}
}

func aliasOrDefault(alias string) string {
	if alias == "" {
		return DefaultAlias
	}
	return alias
}

func (m *Manager) fail(err error) error {
	return harness.Fail(m.reporter, err)
}

// Connect opens and pings the database described by cfg and registers it
// under alias, which becomes the current alias. An existing connection with
// the same alias is closed first.
func (m *Manager) Connect(ctx context.Context, cfg ConnConfig, alias string) error {
	alias = aliasOrDefault(alias)

	db, err := open(cfg)
	if err != nil {
		return m.fail(err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return m.fail(fmt.Errorf("%w: connect %s database %s: %v", ErrConnection, cfg.Engine, cfg.Database, err))
	}

	if old, ok := m.conns[alias]; ok {
		m.logger.Warn().Str("alias", alias).Msg("replacing existing database connection")
		if err := old.db.Close(); err != nil {
			m.logger.Warn().Err(err).Str("alias", alias).Msg("error closing replaced connection")
		}
	}

	m.conns[alias] = &Conn{Alias: alias, Engine: cfg.Engine, Database: cfg.Database, db: db}
	m.current = alias

	m.logger.Info().
		Str("engine", string(cfg.Engine)).
		Str("database", cfg.Database).
		Str("alias", alias).
		Msg("connected to database")
	return nil
}

// conn looks up alias without reporting.
func (m *Manager) conn(alias string) (*Conn, error) {
	alias = aliasOrDefault(alias)
	c, ok := m.conns[alias]
	if !ok {
		return nil, fmt.Errorf("%w: database connection '%s' not found", ErrConnection, alias)
	}
	return c, nil
}

// Conn returns the connection registered under alias.
func (m *Manager) Conn(alias string) (*Conn, error) {
	c, err := m.conn(alias)
	if err != nil {
		return nil, m.fail(err)
	}
	return c, nil
}

// Current returns the alias of the most recent successful Connect, or "" when
// it has since been disconnected.
func (m *Manager) Current() string {
	return m.current
}

// Aliases returns the registered aliases in sorted order.
func (m *Manager) Aliases() []string {
	out := make([]string, 0, len(m.conns))
	for a := range m.conns {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Disconnect closes and forgets alias. An unknown alias and close errors are
// logged as warnings and never fail.
func (m *Manager) Disconnect(alias string) {
	alias = aliasOrDefault(alias)
	c, ok := m.conns[alias]
	if !ok {
		m.logger.Warn().Str("alias", alias).Msg("database connection not found")
		return
	}

	if err := c.db.Close(); err != nil {
		m.logger.Warn().Err(err).Str("alias", alias).Msg("error during database disconnection")
	}
	delete(m.conns, alias)
	if m.current == alias {
		m.current = ""
	}
	m.logger.Info().Str("alias", alias).Msg("disconnected from database")
}

// CloseAll disconnects every alias.
func (m *Manager) CloseAll() {
	for _, alias := range m.Aliases() {
		m.Disconnect(alias)
	}
}
