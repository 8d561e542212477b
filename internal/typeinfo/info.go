// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"
	"strings"
)

// Field represents a single column-mapped field of a model struct.
type Field struct {
	Type reflect.Type

	// Name is the name of the struct field.
	Name string

	// Column is the column name, taken from the "db" tag when present and
	// from the field name otherwise.
	Column string

	// Index is the index sequence for reflect.Value.FieldByIndex. It has
	// more than one element for fields promoted from embedded structs.
	Index []int

	// Key is true for the identifier field.
	Key bool
}

// Model represents reflected information about a model struct type.
type Model struct {
	Type reflect.Type

	// Table is the table name of the model.
	Table string

	// Fields holds the column-mapped fields in declaration order.
	Fields []*Field

	// Key is the identifier field, or nil if the model has none.
	Key *Field

	// columns relates lower case column names to fields.
	columns map[string]*Field
}

// FieldByColumn returns the field mapped to the column, compared case
// insensitively.
func (m *Model) FieldByColumn(column string) (*Field, bool) {
	f, ok := m.columns[strings.ToLower(column)]
	return f, ok
}

// Columns returns the fields that are written by INSERT and UPDATE
// statements: every field except the identifier.
func (m *Model) Columns() []*Field {
	cols := make([]*Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !f.Key {
			cols = append(cols, f)
		}
	}
	return cols
}

// Value returns the value of the field within the model struct value v.
func (f *Field) Value(v reflect.Value) reflect.Value {
	return reflect.Indirect(v).FieldByIndex(f.Index)
}
