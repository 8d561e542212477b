// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/canonical/sqlrepo"
)

// Factory hands out an open database handle.
type Factory interface {
	// Open returns the open handle, opening it on first use and reopening
	// it when it no longer answers a ping.
	Open(ctx context.Context) (*sql.DB, error)
	// Close closes the handle if it is open.
	Close() error
}

// NewFactory returns a Factory for the connection described by cfg. No
// connection is made until Open is called.
func NewFactory(cfg Config) (Factory, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("empty dsn")
	}
	return &factory{cfg: cfg, open: openDriver}, nil
}

type factory struct {
	cfg  Config
	open func(Config) (*sql.DB, error)

	mu sync.Mutex
	db *sql.DB
}

func (f *factory) Open(ctx context.Context) (*sql.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.db != nil {
		if err := f.db.PingContext(ctx); err == nil {
			return f.db, nil
		}
		f.db.Close()
		f.db = nil
	}
	db, err := f.open(f.cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s connection: %w", f.cfg.Driver, err)
	}
	if f.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(f.cfg.MaxOpenConns)
	}
	if f.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(f.cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot reach %s database: %w", f.cfg.Driver, err)
	}
	f.db = db
	return db, nil
}

func (f *factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

func openDriver(cfg Config) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLServer:
		connector, err := mssql.NewConnector(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	case DriverSQLite:
		return sql.Open(DriverSQLite, cfg.DSN)
	}
	return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
}

// OpenDB opens the factory's handle and wraps it in a sqlrepo.DB configured
// with the dialect and schema of cfg. Further options are applied after
// those.
func OpenDB(ctx context.Context, f Factory, cfg Config, opts ...sqlrepo.Option) (*sqlrepo.DB, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	sqldb, err := f.Open(ctx)
	if err != nil {
		return nil, err
	}
	base, err := cfg.DBOptions()
	if err != nil {
		return nil, err
	}
	return sqlrepo.NewDB(sqldb, append(base, opts...)...), nil
}
