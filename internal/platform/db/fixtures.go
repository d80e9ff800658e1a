package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Upsert inserts records into table, updating rows whose key column already
// exists. All records are written in one transaction. Nested maps and slices
// are stored as JSON text.
func (m *Manager) Upsert(ctx context.Context, alias, table, key string, records []Record) (int, error) {
	c, err := m.conn(alias)
	if err != nil {
		return 0, m.fail(err)
	}
	if err := checkIdent(table); err != nil {
		return 0, m.fail(err)
	}
	if err := checkIdent(key); err != nil {
		return 0, m.fail(err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, m.fail(fmt.Errorf("%w: begin transaction: %v", ErrTestData, err))
	}
	defer tx.Rollback()

	for i, rec := range records {
		if _, ok := rec[key]; !ok {
			return 0, m.fail(fmt.Errorf("%w: %s record %d has no %s", ErrTestData, table, i, key))
		}

		cols := make([]string, 0, len(rec))
		for col := range rec {
			if err := checkIdent(col); err != nil {
				return 0, m.fail(err)
			}
			cols = append(cols, col)
		}
		sort.Strings(cols)

		args := make([]any, len(cols))
		for j, col := range cols {
			v, err := fixtureValue(rec[col])
			if err != nil {
				return 0, m.fail(fmt.Errorf("%w: %s.%s: %v", ErrTestData, table, col, err))
			}
			args[j] = v
		}

		query := rebind(c.Engine, upsertStatement(c.Engine, table, key, cols))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, m.fail(fmt.Errorf("%w: upsert into %s: %v", ErrTestData, table, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, m.fail(fmt.Errorf("%w: commit: %v", ErrTestData, err))
	}

	m.logger.Info().Str("table", table).Int("records", len(records)).Msg("fixtures loaded")
	return len(records), nil
}

func upsertStatement(engine Engine, table, key string, cols []string) string {
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), Placeholders(len(cols)))

	var sets []string
	for _, col := range cols {
		if col == key {
			continue
		}
		if engine == MySQL {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	if engine == MySQL {
		if len(sets) == 0 {
			return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), Placeholders(len(cols)))
		}
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	if len(sets) == 0 {
		return insert + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", key)
	}
	return insert + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
}

func fixtureValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}
