package db

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Record is one result row keyed by column name. Byte slices returned by the
// driver are converted to strings.
type Record map[string]any

// Execute runs query on alias. Queries are written with ? placeholders and
// rebound for the engine. With fetch the rows are returned as Records;
// without fetch the statement is executed and nil is returned.
func (m *Manager) Execute(ctx context.Context, alias, query string, args []any, fetch bool) ([]Record, error) {
	if !fetch {
		if _, err := m.exec(ctx, alias, query, args...); err != nil {
			return nil, m.fail(err)
		}
		return nil, nil
	}
	records, err := m.query(ctx, alias, query, args...)
	if err != nil {
		return nil, m.fail(err)
	}
	return records, nil
}

// Query runs a statement that returns rows.
func (m *Manager) Query(ctx context.Context, alias, query string, args ...any) ([]Record, error) {
	return m.Execute(ctx, alias, query, args, true)
}

// Exec runs a statement that returns no rows and reports the number of rows
// affected.
func (m *Manager) Exec(ctx context.Context, alias, query string, args ...any) (int64, error) {
	n, err := m.exec(ctx, alias, query, args...)
	if err != nil {
		return 0, m.fail(err)
	}
	return n, nil
}

func (m *Manager) exec(ctx context.Context, alias, query string, args ...any) (int64, error) {
	c, err := m.conn(alias)
	if err != nil {
		return 0, err
	}

	m.logQuery(c, query)
	res, err := c.db.ExecContext(ctx, rebind(c.Engine, query), args...)
	if err != nil {
		return 0, fmt.Errorf("%w: query execution failed: %v", ErrValidation, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = -1
	}
	m.logger.Debug().Str("alias", c.Alias).Int64("rows_affected", n).Msg("query executed")
	return n, nil
}

func (m *Manager) query(ctx context.Context, alias, query string, args ...any) ([]Record, error) {
	c, err := m.conn(alias)
	if err != nil {
		return nil, err
	}

	m.logQuery(c, query)
	rows, err := c.db.QueryContext(ctx, rebind(c.Engine, query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query execution failed: %v", ErrValidation, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: read columns: %v", ErrValidation, err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", ErrValidation, err)
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = values[i]
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %v", ErrValidation, err)
	}

	m.logger.Debug().Str("alias", c.Alias).Int("rows_returned", len(records)).Msg("query executed")
	return records, nil
}

// count runs a SELECT COUNT(*) AS count query and returns the count.
func (m *Manager) count(ctx context.Context, alias, query string, args ...any) (int64, error) {
	records, err := m.query(ctx, alias, query, args...)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return toInt64(records[0]["count"])
}

func (m *Manager) logQuery(c *Conn, query string) {
	m.logger.Debug().
		Str("alias", c.Alias).
		Str("query", sanitizeQueryForLogging(query)).
		Msg("executing query")
}

// Placeholders returns n comma-separated ? placeholders for an IN clause.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// rebind rewrites ? placeholders to $1, $2, ... for postgres. Question marks
// inside quoted strings, identifiers and comments are left alone.
func rebind(engine Engine, query string) string {
	if engine != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			b.WriteString(query[i : i+end])
			i += end - 1
			continue
		case ch == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				b.WriteString(query[i:])
				i = len(query)
				continue
			}
			b.WriteString(query[i : i+end+4])
			i += end + 3
			continue
		case ch == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

var sensitiveLiterals = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)ssn\s*=\s*'[^']+'`), "ssn = '***'"},
	{regexp.MustCompile(`(?i)social_security_number\s*=\s*'[^']+'`), "social_security_number = '***'"},
	{regexp.MustCompile(`(?i)password\s*=\s*'[^']+'`), "password = '***'"},
	{regexp.MustCompile(`(?i)token\s*=\s*'[^']+'`), "token = '***'"},
}

// sanitizeQueryForLogging masks literal values assigned to sensitive columns.
func sanitizeQueryForLogging(query string) string {
	out := query
	for _, s := range sensitiveLiterals {
		out = s.pattern.ReplaceAllString(out, s.replacement)
	}
	return out
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: unexpected count type %T", ErrValidation, v)
}

// timeArg formats t the way each engine compares timestamps. SQLite stores
// CURRENT_TIMESTAMP as UTC text, so it is compared as text.
func timeArg(engine Engine, t time.Time) any {
	if engine == SQLite {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return t
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
