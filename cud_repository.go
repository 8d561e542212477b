// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrepo

import (
	"context"
	"fmt"
	"reflect"

	"github.com/canonical/sqlrepo/internal/statement"
	"github.com/canonical/sqlrepo/internal/typeinfo"
)

// CUDRepository creates, updates and deletes models of type M in their
// table.
type CUDRepository[M any] struct {
	db   *DB
	info *typeinfo.Model
	gen  *statement.Generator
	err  error
}

// NewCUDRepository returns a repository writing M to db.
func NewCUDRepository[M any](db *DB) *CUDRepository[M] {
	r := &CUDRepository[M]{db: db}
	r.gen, r.err = newGenerator[M](db)
	if r.err == nil {
		r.info, r.err = typeinfo.GetModel(reflect.TypeOf((*M)(nil)).Elem())
	}
	return r
}

// Add inserts the model and returns the identifier generated for it.
func (r *CUDRepository[M]) Add(ctx context.Context, model M) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	stmt, err := r.gen.Insert(reflect.ValueOf(model))
	if err != nil {
		return 0, err
	}
	return r.insert(ctx, stmt)
}

// AddMany inserts the models with a single statement and returns the
// identifier generated for the last one. Nothing is run for an empty slice
// and the identifier returned is zero.
func (r *CUDRepository[M]) AddMany(ctx context.Context, models []M) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	stmt, err := r.gen.InsertMany(reflect.ValueOf(models))
	if err != nil {
		return 0, err
	}
	if stmt.Empty() {
		return 0, nil
	}
	return r.insert(ctx, stmt)
}

func (r *CUDRepository[M]) insert(ctx context.Context, stmt statement.Statement) (int64, error) {
	id, err := r.db.Insert(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("cannot insert into %s: %w", r.gen.Table(), err)
	}
	return id, nil
}

// Update writes every column of the model to the row with its identifier
// and returns the number of rows affected.
func (r *CUDRepository[M]) Update(ctx context.Context, model M) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	stmt, err := r.gen.Update(reflect.ValueOf(model))
	if err != nil {
		return 0, err
	}
	return r.exec(ctx, "update", stmt)
}

// UpdateFields writes the selected fields of the model to the row with its
// identifier and returns the number of rows affected. At least one field
// must be selected.
func (r *CUDRepository[M]) UpdateFields(ctx context.Context, model M, sels ...Selector[M]) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	probe := reflect.New(r.info.Type).Elem()
	fields := make([]*typeinfo.Field, 0, len(sels))
	for _, sel := range sels {
		f, err := r.info.Select(probe, sel)
		if err != nil {
			return 0, wrapSelectorError(err)
		}
		fields = append(fields, f)
	}
	stmt, err := r.gen.UpdateFields(reflect.ValueOf(model), fields)
	if err != nil {
		return 0, err
	}
	return r.exec(ctx, "update", stmt)
}

// Delete deletes the row with identifier id and returns the number of rows
// affected.
func (r *CUDRepository[M]) Delete(ctx context.Context, id any) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	stmt, err := r.gen.Delete(id)
	if err != nil {
		return 0, err
	}
	return r.exec(ctx, "delete from", stmt)
}

func (r *CUDRepository[M]) exec(ctx context.Context, verb string, stmt statement.Statement) (int64, error) {
	n, err := r.db.Execute(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("cannot %s %s: %w", verb, r.gen.Table(), err)
	}
	return n, nil
}
