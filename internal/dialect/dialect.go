// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package dialect contains the SQL surface syntax that differs between the
// supported databases. Clause ordering, escaping rules and the omission of
// empty filters are the same for every dialect.
package dialect

import (
	"strconv"
	"strings"

	"github.com/canonical/sqlrepo/internal/typeinfo"
)

// Dialect renders dialect specific SQL fragments.
type Dialect interface {
	// Name is the name the dialect is known by in configuration.
	Name() string
	// DefaultSchema is the schema used when none is configured.
	DefaultSchema() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// Table returns the qualified, quoted table name.
	Table(schema, table string) string
	// Literal renders a classified value as a SQL literal.
	Literal(l typeinfo.Literal) string
	// Placeholder returns the named parameter placeholder for name.
	Placeholder(name string) string
	// Paginate returns the clause that skips offset rows and returns at most
	// fetch rows. ordered is false when the query has no ORDER BY clause.
	Paginate(offset, fetch int, ordered bool) string
	// Identity returns the statement, including its leading separator, that
	// retrieves the identifier generated by the last insert. It is empty
	// when the driver reports the identifier through sql.Result.
	Identity() string
}

// base holds the fragments shared by the bracket-quoting dialects.
type base struct{}

// Quote quotes an identifier in square brackets, doubling any closing
// bracket it contains.
func (base) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// Placeholder returns @name.
func (base) Placeholder(name string) string {
	return "@" + name
}

func (b base) table(schema, table string) string {
	if schema == "" {
		return b.Quote(table)
	}
	return b.Quote(schema) + "." + b.Quote(table)
}

// MSSQL is the SQL Server dialect.
type MSSQL struct{ base }

func (MSSQL) Name() string          { return "mssql" }
func (MSSQL) DefaultSchema() string { return "dbo" }

func (d MSSQL) Table(schema, table string) string {
	return d.table(schema, table)
}

// Literal renders text as national character string literals.
func (MSSQL) Literal(l typeinfo.Literal) string {
	if !l.Quoted {
		return l.Text
	}
	if l.National {
		return "N'" + typeinfo.EscapeString(l.Text) + "'"
	}
	return "'" + typeinfo.EscapeString(l.Text) + "'"
}

// Paginate renders OFFSET/FETCH. SQL Server requires an ORDER BY clause
// before OFFSET, so an unordered query is given a constant ordering.
func (MSSQL) Paginate(offset, fetch int, ordered bool) string {
	var sb strings.Builder
	if !ordered {
		sb.WriteString("ORDER BY (SELECT NULL) ")
	}
	sb.WriteString("OFFSET ")
	sb.WriteString(strconv.Itoa(offset))
	sb.WriteString(" ROWS FETCH NEXT ")
	sb.WriteString(strconv.Itoa(fetch))
	sb.WriteString(" ROWS ONLY")
	return sb.String()
}

func (MSSQL) Identity() string { return "; SELECT SCOPE_IDENTITY();" }

// SQLite is the SQLite dialect. SQLite accepts bracket quoted identifiers
// and @name parameters, so only literals, pagination and identity
// retrieval differ from SQL Server. The sqlite3 driver only steps the last
// statement of a multi-statement query, so the generated identifier is read
// from sql.Result instead of a trailing SELECT.
type SQLite struct{ base }

func (SQLite) Name() string          { return "sqlite" }
func (SQLite) DefaultSchema() string { return "main" }

func (d SQLite) Table(schema, table string) string {
	return d.table(schema, table)
}

// Literal renders text as plain string literals; SQLite has no national
// character literals.
func (SQLite) Literal(l typeinfo.Literal) string {
	if !l.Quoted {
		return l.Text
	}
	return "'" + typeinfo.EscapeString(l.Text) + "'"
}

// Paginate renders LIMIT/OFFSET.
func (SQLite) Paginate(offset, fetch int, _ bool) string {
	return "LIMIT " + strconv.Itoa(fetch) + " OFFSET " + strconv.Itoa(offset)
}

func (SQLite) Identity() string { return "" }

// ByName returns the dialect known by name. The empty name and the names of
// the SQL Server drivers select MSSQL.
func ByName(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case "", "mssql", "sqlserver":
		return MSSQL{}, true
	case "sqlite", "sqlite3":
		return SQLite{}, true
	}
	return nil, false
}
