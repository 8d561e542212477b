// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrepo

import "log/slog"

// Option configures a DB.
type Option func(*DB)

// WithDialect sets the dialect of the statements generated for the DB.
// The default is MSSQL.
func WithDialect(d Dialect) Option {
	return func(db *DB) {
		if d != nil {
			db.dialect = d
		}
	}
}

// WithSchema sets the schema that qualifies table names. The default is the
// dialect's default schema; the empty string leaves tables unqualified.
func WithSchema(schema string) Option {
	return func(db *DB) {
		db.schema = &schema
	}
}

// WithLogger logs every statement run on the DB at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// BuilderOption configures a QueryBuilder.
type BuilderOption func(*builderConfig)

type builderConfig struct {
	dialect Dialect
	schema  *string
	table   string
}

// Table sets the table queried by the builder, overriding the name derived
// from the model type.
func Table(name string) BuilderOption {
	return func(c *builderConfig) {
		c.table = name
	}
}

// TableOf sets the table queried by the builder to the table of another
// model type, given by a sample value.
func TableOf(sample any) BuilderOption {
	return func(c *builderConfig) {
		if sample != nil {
			c.table = tableNameOf(sample)
		}
	}
}

// Using sets the dialect of the builder. The default is MSSQL.
func Using(d Dialect) BuilderOption {
	return func(c *builderConfig) {
		if d != nil {
			c.dialect = d
		}
	}
}

// InSchema sets the schema that qualifies the table name. The default is the
// dialect's default schema; the empty string leaves the table unqualified.
func InSchema(schema string) BuilderOption {
	return func(c *builderConfig) {
		c.schema = &schema
	}
}
