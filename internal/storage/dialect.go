package storage

import (
	"strconv"
	"strings"
)

type dialect int

const (
	sqliteDialect dialect = iota
	postgresDialect
)

func dialectFor(dsn string) dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgresDialect
	}
	return sqliteDialect
}

func (d dialect) driver() string {
	if d == postgresDialect {
		return "postgres"
	}
	return "sqlite"
}

func (d dialect) schemaFile() string {
	if d == postgresDialect {
		return "schema_postgres.sql"
	}
	return "schema_sqlite.sql"
}

// rebind rewrites ? placeholders to $N for PostgreSQL. Queries never contain literal '?'.
func (d dialect) rebind(query string) string {
	if d != postgresDialect {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
