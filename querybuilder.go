// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrepo

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/canonical/sqlrepo/internal/typeinfo"
)

// Op is the comparison of a WHERE condition.
type Op int

const (
	// Equal renders [col] = value.
	Equal Op = iota
	// NotEqual renders [col] != value.
	NotEqual
	// Is renders [col] IS value.
	Is
	// Like renders [col] LIKE '%value%'.
	Like
)

func (op Op) String() string {
	switch op {
	case Equal:
		return "="
	case NotEqual:
		return "!="
	case Is:
		return "IS"
	case Like:
		return "LIKE"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Direction is the direction of an ORDER BY term.
type Direction int

const (
	// Unordered leaves the direction to the database.
	Unordered Direction = iota
	// Desc sorts in descending order.
	Desc
	// Asc sorts in ascending order.
	Asc
)

func (d Direction) String() string {
	switch d {
	case Asc:
		return "ASC"
	case Desc:
		return "DESC"
	}
	return ""
}

// Selector references a field of the model M. It must return a pointer to
// the field:
//
//	func(c *Customer) any { return &c.Name }
//
// Converting the field pointer to another pointer type of the same size is
// allowed.
type Selector[M any] func(*M) any

// ByName returns a selector for the field of M with the given Go field name.
// Unknown names make the selector invalid.
func ByName[M any](field string) Selector[M] {
	return func(m *M) any {
		return reflect.ValueOf(m).Elem().FieldByName(field).Addr().Interface()
	}
}

type selectKind int

const (
	selectRows selectKind = iota + 1
	selectCount
)

// joiner connects a WHERE term to the terms before it.
type joiner string

const (
	joinAnd joiner = "AND"
	joinOr  joiner = "OR"
)

type whereTerm struct {
	join   joiner
	column string
	op     Op
	value  string
}

type orderTerm struct {
	column string
	dir    Direction
}

// QueryBuilder builds a SELECT statement on the table of the model M. Each
// method records a clause fragment; the SQL text is assembled by Build.
//
// A QueryBuilder is used for a single query and must not be shared between
// goroutines.
type QueryBuilder[M any] struct {
	info    *typeinfo.Model
	dialect Dialect
	schema  string
	table   string

	kind  selectKind
	model *M

	where    []whereTerm
	order    []orderTerm
	page     int
	pageSize int

	// err is the first error recorded by a chained call.
	err error
}

// NewQueryBuilder returns a builder for queries on the table of M.
func NewQueryBuilder[M any](opts ...BuilderOption) *QueryBuilder[M] {
	cfg := builderConfig{dialect: MSSQL}
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &QueryBuilder[M]{dialect: cfg.dialect, table: cfg.table}
	if cfg.schema != nil {
		b.schema = *cfg.schema
	} else {
		b.schema = cfg.dialect.DefaultSchema()
	}
	info, err := typeinfo.GetModel(reflect.TypeOf((*M)(nil)).Elem())
	if err != nil {
		b.err = err
		return b
	}
	b.info = info
	return b
}

// Query starts a SELECT * statement. The model is retained and the values of
// its fields are read by the Where methods.
func (b *QueryBuilder[M]) Query(model *M) *QueryBuilder[M] {
	return b.start(selectRows, model)
}

// Count starts a SELECT COUNT(*) statement. The model is retained and the
// values of its fields are read by the Where methods.
func (b *QueryBuilder[M]) Count(model *M) *QueryBuilder[M] {
	return b.start(selectCount, model)
}

func (b *QueryBuilder[M]) start(kind selectKind, model *M) *QueryBuilder[M] {
	if b.err != nil {
		return b
	}
	if b.kind != 0 {
		b.err = errors.New("query already started")
		return b
	}
	if model == nil {
		model = new(M)
	}
	if b.table == "" {
		b.table = b.info.Table
	}
	b.kind = kind
	b.model = model
	return b
}

// Where adds a condition on the selected field, comparing the column to the
// field's current value in the model. Nothing is added when the value is nil
// or its text is empty. The first condition is introduced by WHERE and
// later ones are joined with AND.
func (b *QueryBuilder[M]) Where(sel Selector[M], op Op) *QueryBuilder[M] {
	return b.addWhere(joinAnd, sel, op)
}

// AndWhere is Where joined with AND.
func (b *QueryBuilder[M]) AndWhere(sel Selector[M], op Op) *QueryBuilder[M] {
	return b.addWhere(joinAnd, sel, op)
}

// OrWhere is Where joined with OR.
func (b *QueryBuilder[M]) OrWhere(sel Selector[M], op Op) *QueryBuilder[M] {
	return b.addWhere(joinOr, sel, op)
}

func (b *QueryBuilder[M]) addWhere(join joiner, sel Selector[M], op Op) *QueryBuilder[M] {
	if b.err != nil {
		return b
	}
	if b.kind == 0 {
		b.err = errors.New("cannot add condition before Query or Count")
		return b
	}
	if op < Equal || op > Like {
		b.err = fmt.Errorf("unknown comparison %s", op)
		return b
	}
	base := reflect.ValueOf(b.model).Elem()
	f, err := b.info.Select(base, sel)
	if err != nil {
		b.err = wrapSelectorError(err)
		return b
	}
	lit, err := typeinfo.ToLiteral(f.Value(base).Interface())
	if err != nil {
		b.err = fmt.Errorf("cannot format value of %s: %w", f.Name, err)
		return b
	}
	if lit.Absent() {
		return b
	}
	var value string
	if op == Like {
		value = b.dialect.Literal(typeinfo.Literal{Text: "%" + lit.Text + "%", Quoted: true, National: true})
	} else {
		value = b.dialect.Literal(lit)
	}
	b.where = append(b.where, whereTerm{join: join, column: f.Column, op: op, value: value})
	return b
}

// OrderBy adds an ORDER BY term on the selected field. Terms are rendered in
// the order they were added.
func (b *QueryBuilder[M]) OrderBy(sel Selector[M], dir Direction) *QueryBuilder[M] {
	if b.err != nil {
		return b
	}
	f, err := b.info.Select(reflect.New(b.info.Type).Elem(), sel)
	if err != nil {
		b.err = wrapSelectorError(err)
		return b
	}
	b.order = append(b.order, orderTerm{column: f.Column, dir: dir})
	return b
}

// WithPagination limits the query to the page of pageSize rows numbered
// page, counting from 1. It does nothing when either argument is zero.
func (b *QueryBuilder[M]) WithPagination(page, pageSize int) *QueryBuilder[M] {
	if page <= 0 || pageSize <= 0 {
		return b
	}
	b.page = page
	b.pageSize = pageSize
	return b
}

// Err returns the first error recorded by a chained call.
func (b *QueryBuilder[M]) Err() error {
	return b.err
}

// Build assembles the SQL text of the query. It returns the first error
// recorded by a chained call.
func (b *QueryBuilder[M]) Build() (string, error) {
	if b == nil {
		return "", errNilQuery
	}
	if b.err != nil {
		return "", b.err
	}
	if b.kind == 0 {
		return "", errors.New("cannot build before Query or Count")
	}

	var sb strings.Builder
	if b.kind == selectCount {
		sb.WriteString("SELECT COUNT(*) FROM ")
	} else {
		sb.WriteString("SELECT * FROM ")
	}
	sb.WriteString(b.dialect.Table(b.schema, b.table))

	for i, w := range b.where {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" " + string(w.join) + " ")
		}
		sb.WriteString(b.dialect.Quote(w.column))
		sb.WriteString(" " + w.op.String() + " ")
		sb.WriteString(w.value)
	}

	// An ordered or paged aggregate is not valid SQL Server.
	if b.kind == selectCount {
		return strings.TrimSpace(sb.String()), nil
	}

	for i, o := range b.order {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(b.dialect.Quote(o.column))
		if o.dir != Unordered {
			sb.WriteString(" " + o.dir.String())
		}
	}

	if b.pageSize > 0 {
		offset := (b.page - 1) * b.pageSize
		sb.WriteString(" ")
		sb.WriteString(b.dialect.Paginate(offset, b.pageSize, len(b.order) > 0))
	}
	return strings.TrimSpace(sb.String()), nil
}

// MustBuild is the same as Build except that it panics on error.
func (b *QueryBuilder[M]) MustBuild() string {
	sql, err := b.Build()
	if err != nil {
		panic(err)
	}
	return sql
}

func tableNameOf(sample any) string {
	return typeinfo.TableName(reflect.TypeOf(sample))
}
