// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the layout of date/time literals.
const TimeLayout = "2006-01-02 15:04:05"

// Literal is a Go value classified for rendering as a SQL literal.
type Literal struct {
	// Text is the textual form of the value. It is empty for absent values.
	Text string
	// Quoted is true when Text must be rendered as a string literal.
	Quoted bool
	// National is true for text values, which some dialects prefix.
	National bool
}

// Absent reports whether the value produces no SQL, either because it is
// nil or because its textual form is empty.
func (l Literal) Absent() bool {
	return l.Text == ""
}

// EscapeString doubles embedded single quotes.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ToLiteral classifies v for rendering. Pointers are dereferenced and
// driver.Valuer implementations are unwrapped first. Nil values yield an
// absent literal.
func ToLiteral(v any) (Literal, error) {
	for {
		if v == nil {
			return Literal{}, nil
		}
		if valuer, ok := v.(driver.Valuer); ok {
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Pointer && rv.IsNil() {
				return Literal{}, nil
			}
			dv, err := valuer.Value()
			if err != nil {
				return Literal{}, err
			}
			v = dv
			if _, ok := v.(driver.Valuer); ok {
				return Literal{}, fmt.Errorf("driver.Valuer %T returned another driver.Valuer", valuer)
			}
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer {
			break
		}
		if rv.IsNil() {
			return Literal{}, nil
		}
		v = rv.Elem().Interface()
	}

	switch x := v.(type) {
	case string:
		return Literal{Text: x, Quoted: true, National: true}, nil
	case time.Time:
		return Literal{Text: x.Format(TimeLayout), Quoted: true}, nil
	case bool:
		if x {
			return Literal{Text: "1"}, nil
		}
		return Literal{Text: "0"}, nil
	case []byte:
		if x == nil {
			return Literal{}, nil
		}
		return Literal{Text: "0x" + hex.EncodeToString(x)}, nil
	}

	// Dispatch on the kind so that named types such as time.Duration or
	// enums with a String method render as their underlying value.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return Literal{Text: rv.String(), Quoted: true, National: true}, nil
	case reflect.Bool:
		return ToLiteral(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Literal{Text: strconv.FormatInt(rv.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Literal{Text: strconv.FormatUint(rv.Uint(), 10)}, nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Literal{}, fmt.Errorf("cannot render %v as a SQL literal", f)
		}
		return Literal{Text: strconv.FormatFloat(f, 'g', -1, rv.Type().Bits())}, nil
	}
	return Literal{}, fmt.Errorf("cannot render %s value as a SQL literal", rv.Type())
}
