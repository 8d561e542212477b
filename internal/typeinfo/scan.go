// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"database/sql"
	"reflect"

	"github.com/pkg/errors"
)

var scannerInterface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// ScanProxy is a shim for scanning query results into fields that cannot be
// scanned into directly.
type ScanProxy struct {
	original reflect.Value
	scan     reflect.Value
}

// OnSuccess copies the scanned value into the original field, zeroing it if
// the column was NULL.
func (sp ScanProxy) OnSuccess() {
	var val reflect.Value
	if !sp.scan.IsNil() {
		val = sp.scan.Elem()
	} else {
		val = reflect.Zero(sp.original.Type())
	}
	sp.original.Set(val)
}

// ScanTargets returns the pointers to pass to rows.Scan for the result
// columns cols, scanning into the settable model struct value v. Columns
// that do not map to a field are discarded.
//
// rows.Scan will return an error if it tries to scan NULL into a type that
// cannot be set to nil, so for types that are not a pointer and do not
// implement sql.Scanner, a pointer to them is generated and passed to
// rows.Scan. The returned proxies must be run once the scan succeeds.
func (m *Model) ScanTargets(v reflect.Value, cols []string) ([]any, []ScanProxy, error) {
	if v.Type() != m.Type || !v.CanSet() {
		return nil, nil, errors.Errorf("internal error: cannot scan into %s, need settable %s", v.Type(), m.Type.Name())
	}
	ptrs := make([]any, 0, len(cols))
	var proxies []ScanProxy
	for _, col := range cols {
		f, ok := m.FieldByColumn(col)
		if !ok {
			ptrs = append(ptrs, new(any))
			continue
		}
		val := v.FieldByIndex(f.Index)
		pt := reflect.PointerTo(val.Type())
		if val.Kind() != reflect.Pointer && !pt.Implements(scannerInterface) {
			scanVal := reflect.New(pt).Elem()
			ptrs = append(ptrs, scanVal.Addr().Interface())
			proxies = append(proxies, ScanProxy{original: val, scan: scanVal})
			continue
		}
		ptrs = append(ptrs, val.Addr().Interface())
	}
	return ptrs, proxies, nil
}
