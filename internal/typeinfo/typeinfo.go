// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/mitranim/refut"
	"github.com/pkg/errors"
)

// ReservedField is the name of the bookkeeping field that is never treated
// as a column.
const ReservedField = "DomainEvents"

// KeyColumn is the column name of the identifier field.
const KeyColumn = "Id"

// tabler is implemented by models that override their table name.
type tabler interface {
	TableName() string
}

var cacheMutex sync.RWMutex
var cache = make(map[reflect.Type]*Model)

// GetModel returns the Model of a given struct type, generating and caching
// as required. Pointer types are dereferenced.
func GetModel(t reflect.Type) (*Model, error) {
	if t == nil {
		return nil, errors.New("cannot reflect nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	cacheMutex.RLock()
	m, found := cache[t]
	cacheMutex.RUnlock()
	if found {
		return m, nil
	}

	m, err := generate(t)
	if err != nil {
		return nil, err
	}

	cacheMutex.Lock()
	cache[t] = m
	cacheMutex.Unlock()

	return m, nil
}

// GetModelOf is GetModel for the type of a sample value.
func GetModelOf(sample any) (*Model, error) {
	if sample == nil {
		return nil, errors.New("cannot reflect nil value")
	}
	return GetModel(reflect.TypeOf(sample))
}

// TableName returns the table name of a type: the result of its TableName
// method when it has one, else the type name.
func TableName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if tb, ok := reflect.New(t).Interface().(tabler); ok {
		if tn := tb.TableName(); tn != "" {
			return tn
		}
	}
	return t.Name()
}

// generate produces the Model for a struct type.
func generate(t reflect.Type) (*Model, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("can only reflect struct type, got %s", t.Kind())
	}
	if t.Name() == "" {
		return nil, errors.New("cannot use anonymous struct as model")
	}

	m := &Model{
		Type:    t,
		Table:   TableName(t),
		columns: make(map[string]*Field),
	}

	err := refut.TraverseStructRtype(t, func(sfield reflect.StructField, path []int) error {
		// Embedded structs are traversed for their promoted fields.
		if sfield.Anonymous && derefType(sfield.Type).Kind() == reflect.Struct {
			return nil
		}
		if !sfield.IsExported() || sfield.Name == ReservedField {
			return nil
		}
		if throughPointer(t, path) {
			return errors.Errorf("field %s of %s is promoted through an embedded pointer", sfield.Name, t.Name())
		}
		column, ok, err := columnName(sfield)
		if err != nil {
			return errors.Wrapf(err, "field %s of %s", sfield.Name, t.Name())
		}
		if !ok {
			return nil
		}
		lower := strings.ToLower(column)
		if dupe, ok := m.columns[lower]; ok {
			return errors.Errorf("fields %s and %s of %s map to the same column %q",
				dupe.Name, sfield.Name, t.Name(), column)
		}
		f := &Field{
			Type:   sfield.Type,
			Name:   sfield.Name,
			Column: column,
			Index:  append([]int(nil), path...),
			Key:    strings.EqualFold(column, KeyColumn),
		}
		if f.Key {
			m.Key = f
		}
		m.Fields = append(m.Fields, f)
		m.columns[lower] = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// This expression should be aligned with what SQL Server accepts inside
// brackets without escaping.
var validColNameRx = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z_0-9]*$`)

// columnName parses the "db" tag of a struct field. It returns false for
// fields excluded with db:"-".
func columnName(sfield reflect.StructField) (string, bool, error) {
	tag, tagged := sfield.Tag.Lookup("db")
	if !tagged {
		return sfield.Name, true, nil
	}
	options := strings.Split(tag, ",")
	if len(options) > 1 {
		return "", false, errors.Errorf("unexpected tag value %q", options[1])
	}
	if options[0] == "-" {
		return "", false, nil
	}
	name := refut.TagIdent(tag)
	if name == "" {
		return sfield.Name, true, nil
	}
	if !validColNameRx.MatchString(name) {
		return "", false, errors.Errorf("invalid column name %q in 'db' tag", name)
	}
	return name, true, nil
}

// throughPointer reports whether the field at path is reached through an
// embedded pointer, which a zero model value cannot address.
func throughPointer(t reflect.Type, path []int) bool {
	for _, i := range path[:len(path)-1] {
		ft := t.Field(i).Type
		if ft.Kind() == reflect.Pointer {
			return true
		}
		t = ft
	}
	return false
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
