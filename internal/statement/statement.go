// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package statement generates INSERT, UPDATE and DELETE statements from the
// column-mapped fields of a model. Every value is bound through a named
// parameter.
package statement

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/canonical/sqlrepo/internal/dialect"
	"github.com/canonical/sqlrepo/internal/typeinfo"
)

var (
	// ErrNoFields is returned when a partial update names no fields.
	ErrNoFields = errors.New("no fields to update")
	// ErrKeyUpdate is returned when a partial update names the identifier.
	ErrKeyUpdate = errors.New("cannot update the identifier field")
	// ErrNoKey is returned when a statement needs an identifier field that
	// the model does not have.
	ErrNoKey = errors.New("model has no identifier field")
)

// Statement is generated SQL along with the sql.NamedArg values that bind
// its placeholders.
type Statement struct {
	SQL  string
	Args []any
}

// Empty reports whether the statement has no effect and should not be run.
func (s Statement) Empty() bool {
	return s.SQL == ""
}

// Generator generates statements for one model type.
type Generator struct {
	model   *typeinfo.Model
	dialect dialect.Dialect
	table   string
}

// New returns a Generator for model, writing to the given schema.
func New(model *typeinfo.Model, d dialect.Dialect, schema string) *Generator {
	return &Generator{
		model:   model,
		dialect: d,
		table:   d.Table(schema, model.Table),
	}
}

// Table returns the qualified, quoted table name.
func (g *Generator) Table() string {
	return g.table
}

// Insert returns the INSERT statement for v followed by the retrieval of
// the generated identifier.
func (g *Generator) Insert(v reflect.Value) (Statement, error) {
	if err := g.check(v); err != nil {
		return Statement{}, err
	}
	cols := g.model.Columns()
	if len(cols) == 0 {
		return Statement{SQL: "INSERT INTO " + g.table + " DEFAULT VALUES" + g.dialect.Identity()}, nil
	}
	var b sqlBuilder
	b.write("INSERT INTO " + g.table + " ")
	g.writeColumnList(&b, cols)
	b.write(" VALUES (")
	args := make([]any, 0, len(cols))
	b.writeCommaSeparatedList(len(cols), func(i int) string {
		args = append(args, sql.Named(cols[i].Column, cols[i].Value(v).Interface()))
		return g.dialect.Placeholder(cols[i].Column)
	})
	b.write(")" + g.dialect.Identity())
	return Statement{SQL: b.String(), Args: args}, nil
}

// InsertMany returns a single INSERT statement with one row per element
// of the slice v, followed by the retrieval of the identifier generated for
// the last row. An empty slice yields an empty Statement.
func (g *Generator) InsertMany(v reflect.Value) (Statement, error) {
	if v.Kind() != reflect.Slice {
		return Statement{}, fmt.Errorf("internal error: need slice, got %s", v.Kind())
	}
	if v.Len() == 0 {
		return Statement{}, nil
	}
	cols := g.model.Columns()
	if len(cols) == 0 {
		return Statement{}, ErrNoFields
	}
	var b sqlBuilder
	b.write("INSERT INTO " + g.table + " ")
	g.writeColumnList(&b, cols)
	b.write(" VALUES ")
	args := make([]any, 0, len(cols)*v.Len())
	for row := 0; row < v.Len(); row++ {
		rv := v.Index(row)
		if err := g.check(rv); err != nil {
			return Statement{}, fmt.Errorf("row %d: %w", row, err)
		}
		if row != 0 {
			b.write(", ")
		}
		b.write("(")
		b.writeCommaSeparatedList(len(cols), func(i int) string {
			name := cols[i].Column + "_" + strconv.Itoa(row)
			args = append(args, sql.Named(name, cols[i].Value(rv).Interface()))
			return g.dialect.Placeholder(name)
		})
		b.write(")")
	}
	b.write(g.dialect.Identity())
	return Statement{SQL: b.String(), Args: args}, nil
}

// Update returns the UPDATE statement that writes every column of v to the
// row with its identifier.
func (g *Generator) Update(v reflect.Value) (Statement, error) {
	if err := g.check(v); err != nil {
		return Statement{}, err
	}
	if g.model.Key == nil {
		return Statement{}, ErrNoKey
	}
	cols := g.model.Columns()
	if len(cols) == 0 {
		return Statement{}, ErrNoFields
	}
	return g.update(v, cols), nil
}

// UpdateFields returns the UPDATE statement that writes only the given
// fields of v. Fields named more than once are written once.
func (g *Generator) UpdateFields(v reflect.Value, fields []*typeinfo.Field) (Statement, error) {
	if err := g.check(v); err != nil {
		return Statement{}, err
	}
	if g.model.Key == nil {
		return Statement{}, ErrNoKey
	}
	if len(fields) == 0 {
		return Statement{}, ErrNoFields
	}
	seen := make(map[*typeinfo.Field]bool, len(fields))
	distinct := make([]*typeinfo.Field, 0, len(fields))
	for _, f := range fields {
		if f.Key {
			return Statement{}, ErrKeyUpdate
		}
		if !seen[f] {
			seen[f] = true
			distinct = append(distinct, f)
		}
	}
	return g.update(v, distinct), nil
}

func (g *Generator) update(v reflect.Value, cols []*typeinfo.Field) Statement {
	var b sqlBuilder
	args := make([]any, 0, len(cols)+1)
	b.write("UPDATE " + g.table + " SET ")
	b.writeCommaSeparatedList(len(cols), func(i int) string {
		args = append(args, sql.Named(cols[i].Column, cols[i].Value(v).Interface()))
		return g.dialect.Quote(cols[i].Column) + " = " + g.dialect.Placeholder(cols[i].Column)
	})
	key := g.model.Key
	b.write(" WHERE " + g.keyCondition())
	args = append(args, sql.Named(key.Column, key.Value(v).Interface()))
	return Statement{SQL: b.String(), Args: args}
}

// Delete returns the DELETE statement for the row with identifier id.
func (g *Generator) Delete(id any) (Statement, error) {
	if g.model.Key == nil {
		return Statement{}, ErrNoKey
	}
	return Statement{
		SQL:  "DELETE FROM " + g.table + " WHERE " + g.keyCondition(),
		Args: []any{sql.Named(g.model.Key.Column, id)},
	}, nil
}

// SelectByKey returns the SELECT statement for the row with identifier id.
func (g *Generator) SelectByKey(id any) (Statement, error) {
	if g.model.Key == nil {
		return Statement{}, ErrNoKey
	}
	return Statement{
		SQL:  "SELECT * FROM " + g.table + " WHERE " + g.keyCondition(),
		Args: []any{sql.Named(g.model.Key.Column, id)},
	}, nil
}

func (g *Generator) keyCondition() string {
	col := g.model.Key.Column
	return g.dialect.Quote(col) + " = " + g.dialect.Placeholder(col)
}

func (g *Generator) writeColumnList(b *sqlBuilder, cols []*typeinfo.Field) {
	b.write("(")
	b.writeCommaSeparatedList(len(cols), func(i int) string {
		return g.dialect.Quote(cols[i].Column)
	})
	b.write(")")
}

// check verifies that v is a value of the generator's model type.
func (g *Generator) check(v reflect.Value) error {
	v = reflect.Indirect(v)
	if !v.IsValid() {
		return fmt.Errorf("need %s, got nil", g.model.Type.Name())
	}
	if v.Type() != g.model.Type {
		return fmt.Errorf("need %s, got %s", g.model.Type.Name(), v.Type())
	}
	return nil
}

// sqlBuilder is used to generate SQL string piece by piece.
type sqlBuilder struct {
	buf bytes.Buffer
}

// writeCommaSeparatedList writes n elements produced by writer, separated
// by commas.
func (b *sqlBuilder) writeCommaSeparatedList(n int, writer func(i int) string) {
	for i := 0; i < n; i++ {
		if i != 0 {
			b.buf.WriteString(", ")
		}
		b.buf.WriteString(writer(i))
	}
}

func (b *sqlBuilder) write(sql string) {
	b.buf.WriteString(sql)
}

func (b *sqlBuilder) String() string {
	return b.buf.String()
}
