// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrepo

import (
	"fmt"

	"github.com/canonical/sqlrepo/internal/dialect"
)

// Dialect renders the SQL surface syntax of a database.
type Dialect = dialect.Dialect

var (
	// MSSQL is the SQL Server dialect: bracket quoted identifiers, N'...'
	// string literals, OFFSET/FETCH pagination and SCOPE_IDENTITY().
	MSSQL Dialect = dialect.MSSQL{}

	// SQLite is the SQLite dialect: bracket quoted identifiers, '...'
	// string literals and LIMIT/OFFSET pagination. Inserted identifiers are
	// read from sql.Result.LastInsertId.
	SQLite Dialect = dialect.SQLite{}
)

// DialectByName returns the dialect known by name in configuration:
// "mssql" (or "sqlserver", or empty) and "sqlite" (or "sqlite3").
func DialectByName(name string) (Dialect, error) {
	d, ok := dialect.ByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
	return d, nil
}
