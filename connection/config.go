// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package connection opens and reuses the database handle that repositories
// run their statements on.
package connection

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/canonical/sqlrepo"
)

const (
	// DriverSQLServer is the name of the SQL Server driver.
	DriverSQLServer = "sqlserver"
	// DriverSQLite is the name of the SQLite driver.
	DriverSQLite = "sqlite3"
)

// Config describes a database connection.
type Config struct {
	// Driver is DriverSQLServer (the default) or DriverSQLite.
	Driver string `yaml:"driver"`
	// DSN is the driver specific connection string.
	DSN string `yaml:"dsn"`
	// Dialect defaults to the dialect of the driver.
	Dialect string `yaml:"dialect"`
	// Schema defaults to the default schema of the dialect.
	Schema string `yaml:"schema"`

	MaxOpenConns    int           `yaml:"max-open-conns"`
	ConnMaxLifetime time.Duration `yaml:"conn-max-lifetime"`
}

// ParseConfig parses a YAML connection configuration and fills in the
// defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses the YAML connection configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read connection config: %w", err)
	}
	return ParseConfig(data)
}

func (c *Config) setDefaults() error {
	switch strings.ToLower(c.Driver) {
	case "", "mssql", DriverSQLServer:
		c.Driver = DriverSQLServer
	case "sqlite", DriverSQLite:
		c.Driver = DriverSQLite
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Dialect == "" {
		c.Dialect = c.Driver
	}
	d, err := sqlrepo.DialectByName(c.Dialect)
	if err != nil {
		return err
	}
	c.Dialect = d.Name()
	if c.Schema == "" {
		c.Schema = d.DefaultSchema()
	}
	if c.MaxOpenConns < 0 {
		return fmt.Errorf("negative max-open-conns %d", c.MaxOpenConns)
	}
	return nil
}

// DBOptions returns the options that configure a sqlrepo.DB for the
// connection's dialect and schema.
func (c *Config) DBOptions() ([]sqlrepo.Option, error) {
	d, err := sqlrepo.DialectByName(c.Dialect)
	if err != nil {
		return nil, err
	}
	return []sqlrepo.Option{sqlrepo.WithDialect(d), sqlrepo.WithSchema(c.Schema)}, nil
}
