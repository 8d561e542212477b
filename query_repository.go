// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrepo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/canonical/sqlrepo/internal/statement"
	"github.com/canonical/sqlrepo/internal/typeinfo"
)

// QueryRepository reads models of type M from their table.
type QueryRepository[M any] struct {
	db  *DB
	gen *statement.Generator
	err error
}

// NewQueryRepository returns a repository reading M from db.
func NewQueryRepository[M any](db *DB) *QueryRepository[M] {
	r := &QueryRepository[M]{db: db}
	r.gen, r.err = newGenerator[M](db)
	return r
}

func newGenerator[M any](db *DB) (*statement.Generator, error) {
	if db == nil {
		return nil, errors.New("nil DB")
	}
	info, err := typeinfo.GetModel(reflect.TypeOf((*M)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return statement.New(info, db.Dialect(), db.Schema()), nil
}

// TableName returns the qualified, quoted table name of M.
func (r *QueryRepository[M]) TableName() string {
	if r.gen == nil {
		return ""
	}
	return r.gen.Table()
}

// NewQuery returns a QueryBuilder with the dialect and schema of the
// repository's DB.
func (r *QueryRepository[M]) NewQuery(opts ...BuilderOption) *QueryBuilder[M] {
	if r.db != nil {
		opts = append([]BuilderOption{Using(r.db.Dialect()), InSchema(r.db.Schema())}, opts...)
	}
	return NewQueryBuilder[M](opts...)
}

// Find returns the model with identifier id. It returns [ErrNoRows] if there
// is none.
func (r *QueryRepository[M]) Find(ctx context.Context, id any) (M, error) {
	return FindAs[M](ctx, r, id)
}

// FindBy returns the first model matched by the query.
func (r *QueryRepository[M]) FindBy(ctx context.Context, q *QueryBuilder[M]) (M, error) {
	if r.err != nil {
		var m M
		return m, r.err
	}
	return FindByAs[M](ctx, r.db, q)
}

// GetAll returns every model in the table.
func (r *QueryRepository[M]) GetAll(ctx context.Context) ([]M, error) {
	if r.err != nil {
		return nil, r.err
	}
	return collect[M](r.db.Query(ctx, "SELECT * FROM "+r.gen.Table()))
}

// GetAllBy returns the models matched by the query.
func (r *QueryRepository[M]) GetAllBy(ctx context.Context, q *QueryBuilder[M]) ([]M, error) {
	if r.err != nil {
		return nil, r.err
	}
	return GetAllAs[M](ctx, r.db, q)
}

// Count returns the number of rows matched by a query started with
// [QueryBuilder.Count].
func (r *QueryRepository[M]) Count(ctx context.Context, q *QueryBuilder[M]) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if q == nil {
		return 0, errNilQuery
	}
	if q.kind != selectCount {
		return 0, errors.New("query was not started with Count")
	}
	query, err := q.Build()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.ExecuteScalar(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("cannot count %s: %w", r.gen.Table(), err)
	}
	return n, nil
}

// FindAs returns the row of the repository's table with identifier id,
// mapped to T.
func FindAs[T, M any](ctx context.Context, r *QueryRepository[M], id any) (T, error) {
	var t T
	if r == nil {
		return t, errors.New("nil repository")
	}
	if r.err != nil {
		return t, r.err
	}
	stmt, err := r.gen.SelectByKey(id)
	if err != nil {
		return t, err
	}
	err = r.db.Query(ctx, stmt.SQL, stmt.Args...).Get(&t)
	return t, err
}

// FindByAs returns the first row matched by the query, mapped to T.
func FindByAs[T, M any](ctx context.Context, db *DB, q *QueryBuilder[M]) (T, error) {
	var t T
	if err := checkQuery(db, q); err != nil {
		return t, err
	}
	err := db.QueryBuilt(ctx, q).Get(&t)
	return t, err
}

// GetAllAs returns the rows matched by the query, mapped to T. It returns
// an empty slice if there are none.
func GetAllAs[T, M any](ctx context.Context, db *DB, q *QueryBuilder[M]) ([]T, error) {
	if err := checkQuery(db, q); err != nil {
		return nil, err
	}
	return collect[T](db.QueryBuilt(ctx, q))
}

var errNilQuery = errors.New("nil query")

func checkQuery[M any](db *DB, q *QueryBuilder[M]) error {
	if db == nil {
		return errors.New("nil DB")
	}
	if q == nil {
		return errNilQuery
	}
	return nil
}

func collect[T any](q *Query) ([]T, error) {
	ts := []T{}
	err := q.GetAll(&ts)
	if errors.Is(err, ErrNoRows) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ts, nil
}
