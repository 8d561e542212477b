// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/pkg/errors"
)

// InvalidSelectorError is returned when a field selector does not reference
// a column-mapped field of the model.
type InvalidSelectorError struct {
	// Selector describes the offending selector function.
	Selector string
	// Reason says what was wrong with it.
	Reason string
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("invalid field selector %s: %s", e.Selector, e.Reason)
}

// DescribeFunc returns the name and source position of a function for use
// in error messages.
func DescribeFunc(fn any) string {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return "<unknown>"
	}
	file, line := rf.FileLine(rf.Entry())
	return fmt.Sprintf("%s (%s:%d)", rf.Name(), file, line)
}

// Select runs the selector fn against the addressable struct value base and
// returns the field whose address the selector returned. fn must have the
// signature func(*T) any where base has type T.
//
// A selector may return the field address itself or a conversion of it to
// another pointer type with the same element size.
func (m *Model) Select(base reflect.Value, fn any) (f *Field, err error) {
	desc := DescribeFunc(fn)
	invalid := func(format string, args ...any) error {
		return &InvalidSelectorError{Selector: desc, Reason: fmt.Sprintf(format, args...)}
	}

	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, invalid("selector is nil")
	}
	if base.Kind() != reflect.Struct || !base.CanAddr() {
		return nil, errors.Errorf("internal error: cannot select on %s", base.Kind())
	}

	var out []reflect.Value
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = invalid("selector panicked: %v", r)
			}
		}()
		out = fv.Call([]reflect.Value{base.Addr()})
	}()
	if err != nil {
		return nil, err
	}

	ret := out[0]
	if ret.Kind() == reflect.Interface {
		ret = ret.Elem()
	}
	if !ret.IsValid() {
		return nil, invalid("returned nil, need a pointer to a field of %s", m.Type.Name())
	}
	if ret.Kind() != reflect.Pointer || ret.IsNil() {
		return nil, invalid("returned %s, need a pointer to a field of %s", ret.Type(), m.Type.Name())
	}

	addr := ret.Pointer()
	size := ret.Type().Elem().Size()
	for _, f := range m.Fields {
		fv := base.FieldByIndex(f.Index)
		if fv.UnsafeAddr() == addr && f.Type.Size() == size {
			return f, nil
		}
	}
	return nil, invalid("returned %s that is not a column of %s", ret.Type(), m.Type.Name())
}
