// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerline/settler/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/lopezator/migrator"
)

// New establishes a database connection according to the given configuration.
func New(ctx context.Context, logger log.Logger, cfg config.Database) (*sql.DB, error) {
	if cfg.MySQL != nil {
		logger.Log("database", "connecting to mysql")
		return mysqlConnection(logger, cfg.MySQL.Username, cfg.MySQL.GetPassword(), cfg.MySQL.Address, cfg.MySQL.Database).Connect(ctx)
	}
	if cfg.SQLite != nil {
		logger.Log("database", "connecting to sqlite")
		return sqliteConnection(logger, getSqlitePath(cfg.SQLite)).Connect(ctx)
	}
	return nil, fmt.Errorf("no database configured")
}

func execsql(name, raw string) *migrator.MigrationNoTx {
	return &migrator.MigrationNoTx{
		Name: name,
		Func: func(db *sql.DB) error {
			_, err := db.Exec(raw)
			return err
		},
	}
}

// UniqueViolation returns true when the provided error matches a database error
// for duplicate entries (violating a unique table constraint).
func UniqueViolation(err error) bool {
	return MySQLUniqueViolation(err) || SqliteUniqueViolation(err)
}
