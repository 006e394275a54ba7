// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/moov-io/base/docker"

	"github.com/go-kit/kit/log"
	gomysql "github.com/go-sql-driver/mysql"
	dockertest "github.com/ory/dockertest/v3"
)

var (
	// mySQLErrDuplicateKey is the error code for duplicate entries
	// https://dev.mysql.com/doc/refman/8.0/en/server-error-reference.html#error_er_dup_entry
	mySQLErrDuplicateKey uint16 = 1062
)

type discardLogger struct{}

func (l discardLogger) Print(v ...interface{}) {}

func init() {
	gomysql.SetLogger(discardLogger{})
}

type mysql struct {
	dsn string

	migrations []string
	logger     log.Logger
}

func (my *mysql) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("mysql", my.dsn)
	if err != nil {
		return nil, err
	}

	// Run our migrations
	for i := range my.migrations {
		slug := my.migrations[i]
		if len(slug) > 40 {
			slug = slug[:40]
		}
		res, err := db.Exec(my.migrations[i])
		if err != nil {
			return nil, fmt.Errorf("migration #%d [%s...] had problem: %v", i, slug, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			my.logger.Log("mysql", fmt.Sprintf("migration #%d [%s...] changed %d rows", i, slug, n))
		}
	}

	// Check our DB is up and working
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func mysqlConnection(logger log.Logger, user, pass string, address string, database string) *mysql {
	dsn := fmt.Sprintf("%s:%s@%s/%s?%s", user, pass, address, database, "timeout=30s&tls=false&charset=utf8mb4&parseTime=true&sql_mode=ALLOW_INVALID_DATES")
	return &mysql{
		dsn:    dsn,
		logger: logger,
		migrations: []string{
			`create table if not exists orders(order_id varchar(40) primary key, total varchar(20), billing_name varchar(100), account_type varchar(10), holder_name varchar(100), routing_number_encrypted varchar(500), account_number_encrypted varchar(500), account_number_masked varchar(40), verification_status varchar(20), batch_id varchar(40), status_note varchar(250), created_at datetime, last_updated_at datetime, deleted_at datetime);`,
			`create table if not exists batches(batch_id varchar(40) primary key, profile_name varchar(40), profile_version varchar(20), status varchar(20), filename varchar(100), debit_total bigint, credit_total bigint, entry_hash bigint, entry_count integer, last_error varchar(500), created_at datetime, exported_at datetime, uploaded_at datetime, deleted_at datetime);`,
			`create table if not exists batch_entries(batch_id varchar(40), order_id varchar(40), amount bigint, transaction_code varchar(5), account_number_masked varchar(40), trace_number varchar(20), created_at datetime, unique key batch_order_idx (batch_id, order_id));`,
			`create table if not exists verifications(order_id varchar(40) primary key, customer_id varchar(40), strategy varchar(20), status varchar(20), attempts integer, payload text, created_at datetime, last_updated_at datetime);`,
			`create table if not exists kv_store(k varchar(250) primary key, v text, revision bigint, expires_at datetime);`,
		},
	}
}

// TestMySQLDB is a wrapper around sql.DB for MySQL connections designed for tests to provide
// a clean database for each testcase.  Callers should cleanup with Close() when finished.
type TestMySQLDB struct {
	DB *sql.DB

	container *dockertest.Resource
}

func (r *TestMySQLDB) Close() error {
	r.container.Close()
	return r.DB.Close()
}

// CreateTestMySQLDB returns a TestMySQLDB which can be used in tests
// as a clean mysql database. All migrations are ran on the db before.
//
// Callers should call close on the returned *TestMySQLDB.
func CreateTestMySQLDB(t *testing.T) *TestMySQLDB {
	if testing.Short() {
		t.Skip("-short flag enabled")
	}
	if !docker.Enabled() {
		t.Skip("Docker not enabled")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatal(err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8",
		Env: []string{
			"MYSQL_USER=settler",
			"MYSQL_PASSWORD=secret",
			"MYSQL_ROOT_PASSWORD=secret",
			"MYSQL_DATABASE=settler",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	address := fmt.Sprintf("tcp(localhost:%s)", resource.GetPort("3306/tcp"))

	err = pool.Retry(func() error {
		db, err := sql.Open("mysql", fmt.Sprintf("settler:secret@tcp(localhost:%s)/settler", resource.GetPort("3306/tcp")))
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Ping()
	})
	if err != nil {
		resource.Close()
		t.Fatal(err)
	}

	logger := log.NewNopLogger()

	db, err := mysqlConnection(logger, "settler", "secret", address, "settler").Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return &TestMySQLDB{DB: db, container: resource}
}

// MySQLUniqueViolation returns true when the provided error matches the MySQL code
// for duplicate entries (violating a unique table constraint).
func MySQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*gomysql.MySQLError); ok {
		return e.Number == mySQLErrDuplicateKey
	}
	return false
}
