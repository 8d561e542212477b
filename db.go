// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/canonical/sqlrepo/internal/typeinfo"
)

// DB runs generated SQL on a database and maps the results to models.
// A DB is safe for concurrent use.
type DB struct {
	// sqldb is the underlying database/sql DB object.
	sqldb   *sql.DB
	dialect Dialect
	schema  *string
	logger  *slog.Logger
}

// NewDB creates a new [DB] from a [sql.DB].
func NewDB(sqldb *sql.DB, opts ...Option) *DB {
	if sqldb == nil {
		return nil
	}
	db := &DB{sqldb: sqldb, dialect: MSSQL}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Dialect returns the dialect of the statements generated for the DB.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Schema returns the schema that qualifies table names.
func (db *DB) Schema() string {
	if db.schema != nil {
		return *db.schema
	}
	return db.dialect.DefaultSchema()
}

func (db *DB) log(ctx context.Context, query string, args []any) {
	if db.logger != nil {
		db.logger.DebugContext(ctx, "running statement", "sql", query, "args", len(args))
	}
}

// Execute runs a statement that returns no rows and returns the number of
// rows affected.
func (db *DB) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db.log(ctx, query, args)
	res, err := db.sqldb.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExecuteScalar runs a statement and scans the first column of the first
// row it returns into dest. It returns [ErrNoRows] if there are no rows.
func (db *DB) ExecuteScalar(ctx context.Context, dest any, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db.log(ctx, query, args)
	return db.sqldb.QueryRowContext(ctx, query, args...).Scan(dest)
}

// Insert runs an INSERT statement and returns the identifier generated for
// the last row inserted. When the dialect appends an identity query to the
// statement the identifier is read from its result, otherwise it is taken
// from the driver's sql.Result.
func (db *DB) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db.log(ctx, query, args)
	if db.dialect.Identity() == "" {
		res, err := db.sqldb.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	// SCOPE_IDENTITY() is numeric(38,0) and NULL when nothing was inserted.
	// Its text form is parsed so bigint identities keep every digit.
	var id sql.NullString
	if err := db.sqldb.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, nil
	}
	return parseIdentity(id.String)
}

func parseIdentity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if !strings.ContainsAny(s, ".eE") {
		return 0, fmt.Errorf("cannot parse identity %q", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, fmt.Errorf("cannot parse identity %q", s)
	}
	return int64(f), nil
}

// Query represents a query on a database. It is designed to be run once.
type Query struct {
	// run executes the Query against the DB.
	run func(context.Context) (*sql.Rows, error)
	ctx context.Context
	err error
}

// Iterator is used to iterate over the results of the query.
type Iterator struct {
	rows    *sql.Rows
	cols    []string
	err     error
	started bool
}

// Query builds a new query from a context, SQL text and arguments. The query
// is run on the database when one of [Query.Iter], [Query.Run], [Query.Get]
// or [Query.GetAll] is executed.
func (db *DB) Query(ctx context.Context, query string, args ...any) *Query {
	if ctx == nil {
		ctx = context.Background()
	}
	run := func(innerCtx context.Context) (*sql.Rows, error) {
		db.log(innerCtx, query, args)
		return db.sqldb.QueryContext(innerCtx, query, args...)
	}
	return &Query{run: run, ctx: ctx}
}

// QueryBuilt builds a new query from the SQL generated by a builder. If the
// builder recorded an error the query fails with it.
func (db *DB) QueryBuilt(ctx context.Context, b interface{ Build() (string, error) }) *Query {
	query, err := b.Build()
	if err != nil {
		return &Query{ctx: ctx, err: err}
	}
	return db.Query(ctx, query)
}

// Run is used to run a query on a database and disregard any results.
func (q *Query) Run() error {
	if q.err != nil {
		return q.err
	}
	iter := q.Iter()
	return iter.Close()
}

// Get runs the query and decodes the first row returned into the provided
// output argument: a pointer to a model struct, or a pointer to a value
// that receives the first column. It returns [ErrNoRows] if no results were
// found.
func (q *Query) Get(outputArg any) error {
	if q.err != nil {
		return q.err
	}
	iter := q.Iter()
	if !iter.Next() {
		err := iter.Close()
		if err == nil {
			err = ErrNoRows
		}
		return err
	}
	err := iter.Get(outputArg)
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return err
}

// Iter returns an [Iterator] to iterate through the results row by row.
// [Iterator.Close] must be run once iteration is finished.
func (q *Query) Iter() *Iterator {
	if q.err != nil {
		return &Iterator{err: q.err}
	}
	rows, err := q.run(q.ctx)
	if err != nil {
		return &Iterator{err: err}
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return &Iterator{err: err}
	}
	return &Iterator{rows: rows, cols: cols}
}

// Next prepares the next row for [Iterator.Get]. If an error occurs during
// iteration it will be returned with [Iterator.Close].
func (iter *Iterator) Next() bool {
	iter.started = true
	if iter.err != nil || iter.rows == nil {
		return false
	}
	return iter.rows.Next()
}

// Get decodes the result from the previous [Iterator.Next] call into the
// provided output argument.
func (iter *Iterator) Get(outputArg any) (err error) {
	if iter.err != nil {
		return iter.err
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot get result: %w", err)
		}
	}()

	if !iter.started {
		return fmt.Errorf("cannot call Get before Next")
	}
	if iter.rows == nil {
		return fmt.Errorf("iteration ended")
	}

	ptrVal := reflect.ValueOf(outputArg)
	if ptrVal.Kind() != reflect.Pointer || ptrVal.IsNil() {
		return fmt.Errorf("need non-nil pointer, got %T", outputArg)
	}
	v := ptrVal.Elem()
	if v.Kind() != reflect.Struct || scannable(v.Type()) {
		// Scalars, and structs that scan themselves, take the first column.
		ptrs := make([]any, len(iter.cols))
		for i := range ptrs {
			ptrs[i] = new(any)
		}
		if len(ptrs) > 0 {
			ptrs[0] = outputArg
		}
		return iter.rows.Scan(ptrs...)
	}

	m, err := typeinfo.GetModel(v.Type())
	if err != nil {
		return err
	}
	ptrs, proxies, err := m.ScanTargets(v, iter.cols)
	if err != nil {
		return err
	}
	if err := iter.rows.Scan(ptrs...); err != nil {
		return err
	}
	for _, p := range proxies {
		p.OnSuccess()
	}
	return nil
}

// Close finishes the iteration and returns any errors encountered. Close can
// be called multiple times on the [Iterator] and the same error will be
// returned.
func (iter *Iterator) Close() error {
	iter.started = true
	if iter.rows == nil {
		return iter.err
	}
	err := iter.rows.Close()
	if err == nil {
		err = iter.rows.Err()
	}
	iter.rows = nil
	if iter.err == nil {
		iter.err = err
	}
	return iter.err
}

// GetAll iterates over the query and appends every row to the slice pointed
// to by sliceArg. The slice elements may be structs, pointers to structs or
// scalars.
//
// [ErrNoRows] will be returned if no rows are found.
func (q *Query) GetAll(sliceArg any) (err error) {
	if q.err != nil {
		return q.err
	}

	// Check the slice input is valid using reflection.
	ptrVal := reflect.ValueOf(sliceArg)
	if ptrVal.Kind() != reflect.Pointer {
		return fmt.Errorf("need pointer to slice, got %s", ptrVal.Kind())
	}
	if ptrVal.IsNil() {
		return fmt.Errorf("need pointer to slice, got nil")
	}
	sliceVal := ptrVal.Elem()
	if sliceVal.Kind() != reflect.Slice {
		return fmt.Errorf("need pointer to slice, got pointer to %s", sliceVal.Kind())
	}
	elemType := sliceVal.Type().Elem()

	// Iterate over the query results.
	rowsReturned := false
	iter := q.Iter()
	for iter.Next() {
		rowsReturned = true
		var outputArg reflect.Value
		if elemType.Kind() == reflect.Pointer {
			outputArg = reflect.New(elemType.Elem())
		} else {
			outputArg = reflect.New(elemType)
		}
		if err := iter.Get(outputArg.Interface()); err != nil {
			iter.Close()
			return err
		}
		if elemType.Kind() == reflect.Pointer {
			sliceVal = reflect.Append(sliceVal, outputArg)
		} else {
			sliceVal = reflect.Append(sliceVal, outputArg.Elem())
		}
	}
	err = iter.Close()
	if err != nil {
		return err
	} else if !rowsReturned {
		return ErrNoRows
	}

	ptrVal.Elem().Set(sliceVal)
	return nil
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// scannable reports whether values of type t scan themselves from a single
// column.
func scannable(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(scannerType) || t == timeType
}
