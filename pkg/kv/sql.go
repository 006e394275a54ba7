// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kv

import (
	"database/sql"
	"time"

	"github.com/ledgerline/settler/internal/database"
)

type sqlStore struct {
	db *sql.DB
}

// NewSQLStore returns a Store persisting entries in the kv_store table.
func NewSQLStore(db *sql.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) Get(key string) (*Entry, error) {
	entry, err := s.read(key)
	if err != nil || entry == nil {
		return nil, err
	}
	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

func (s *sqlStore) read(key string) (*Entry, error) {
	query := `select v, revision, expires_at from kv_store where k = ? limit 1;`
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var entry Entry
	var expiresAt sql.NullTime
	if err := stmt.QueryRow(key).Scan(&entry.Value, &entry.Revision, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if expiresAt.Valid {
		entry.ExpiresAt = expiresAt.Time
	}
	return &entry, nil
}

func (s *sqlStore) Put(key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	query := `update kv_store set v = ?, revision = revision + 1, expires_at = ? where k = ?;`
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(value, nullTime(expiresAt(now, ttl)), key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return s.insert(key, value, 1, expiresAt(now, ttl))
}

func (s *sqlStore) insert(key string, value []byte, revision int64, expires time.Time) error {
	query := `insert into kv_store (k, v, revision, expires_at) values (?, ?, ?, ?);`
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(key, value, revision, nullTime(expires))
	return err
}

func (s *sqlStore) CompareAndSwap(key string, value []byte, expected int64, ttl time.Duration) (bool, error) {
	now := time.Now()

	current, err := s.read(key)
	if err != nil {
		return false, err
	}
	if current != nil && current.Expired(now) {
		// An expired row is treated as absent, but the delete is guarded by
		// its revision so two callers can't both clear and insert.
		if _, err := s.casDelete(key, current.Revision); err != nil {
			return false, err
		}
		current = nil
	}

	if expected == 0 {
		if current != nil {
			return false, nil
		}
		if err := s.insert(key, value, 1, expiresAt(now, ttl)); err != nil {
			if database.UniqueViolation(err) {
				return false, nil // somebody else inserted first
			}
			return false, err
		}
		return true, nil
	}

	query := `update kv_store set v = ?, revision = revision + 1, expires_at = ? where k = ? and revision = ?;`
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	res, err := stmt.Exec(value, nullTime(expiresAt(now, ttl)), key, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqlStore) CompareAndDelete(key string, expected int64) (bool, error) {
	return s.casDelete(key, expected)
}

func (s *sqlStore) casDelete(key string, revision int64) (bool, error) {
	stmt, err := s.db.Prepare(`delete from kv_store where k = ? and revision = ?;`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	res, err := stmt.Exec(key, revision)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *sqlStore) Delete(key string) error {
	stmt, err := s.db.Prepare(`delete from kv_store where k = ?;`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(key)
	return err
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
