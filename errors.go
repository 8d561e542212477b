// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrepo

import (
	"database/sql"
	"errors"

	"github.com/canonical/sqlrepo/internal/statement"
	"github.com/canonical/sqlrepo/internal/typeinfo"
)

var (
	// ErrNoRows is returned by Get, Find and FindBy when no row matched.
	ErrNoRows = sql.ErrNoRows

	// ErrInvalidSelector matches, with errors.Is, every error caused by a
	// field selector that does not reference a column of the model.
	ErrInvalidSelector = errors.New("invalid field selector")

	// ErrNoFields is returned by UpdateFields when no field is selected.
	ErrNoFields = statement.ErrNoFields

	// ErrKeyUpdate is returned by UpdateFields when the identifier field is
	// selected.
	ErrKeyUpdate = statement.ErrKeyUpdate

	// ErrNoKey is returned by operations that address a row by identifier
	// on a model without an identifier field.
	ErrNoKey = statement.ErrNoKey
)

// InvalidSelectorError describes a field selector that does not reference a
// column of the model.
type InvalidSelectorError struct {
	err *typeinfo.InvalidSelectorError
}

func (e *InvalidSelectorError) Error() string {
	return e.err.Error()
}

// Selector describes the offending selector function.
func (e *InvalidSelectorError) Selector() string {
	return e.err.Selector
}

// Is makes errors.Is(err, ErrInvalidSelector) hold.
func (e *InvalidSelectorError) Is(target error) bool {
	return target == ErrInvalidSelector
}

// wrapSelectorError converts selector errors from the type info layer into
// the exported error type.
func wrapSelectorError(err error) error {
	var se *typeinfo.InvalidSelectorError
	if errors.As(err, &se) {
		return &InvalidSelectorError{err: se}
	}
	return err
}
