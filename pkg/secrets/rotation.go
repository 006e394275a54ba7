// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"database/sql"
	"fmt"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	rotatedFields = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "secret_fields_rotated",
		Help: "Count of encrypted fields re-encrypted under a new key",
	}, []string{"table", "result"})
)

// RotationSummary reports the outcome of a key rotation run.
type RotationSummary struct {
	Rotated  int
	Failures int
}

// Rotator re-encrypts every stored secret field under a new key.
//
// Each field is decrypted with the old key and immediately re-encrypted and
// persisted, so no field is ever written back as plaintext. Failures are
// counted and skipped so one corrupt row doesn't abort the run.
type Rotator struct {
	db     *sql.DB
	logger log.Logger

	old  *StringKeeper
	next *StringKeeper
}

func NewRotator(logger log.Logger, db *sql.DB, old, next *StringKeeper) *Rotator {
	return &Rotator{
		db:     db,
		logger: logger,
		old:    old,
		next:   next,
	}
}

// rotatedColumn describes one encrypted column and how to address its rows.
type rotatedColumn struct {
	table, column, key string
}

var rotatedColumns = []rotatedColumn{
	{table: "orders", column: "routing_number_encrypted", key: "order_id"},
	{table: "orders", column: "account_number_encrypted", key: "order_id"},
	{table: "verifications", column: "payload", key: "order_id"},
}

func (r *Rotator) Rotate() (RotationSummary, error) {
	var summary RotationSummary
	if r == nil || r.old == nil || r.next == nil {
		return summary, fmt.Errorf("rotator: missing keepers")
	}
	for i := range rotatedColumns {
		sum, err := r.rotateColumn(rotatedColumns[i])
		summary.Rotated += sum.Rotated
		summary.Failures += sum.Failures
		if err != nil {
			return summary, err
		}
	}
	r.logger.Log("secrets", fmt.Sprintf("key rotation finished rotated=%d failures=%d", summary.Rotated, summary.Failures))
	return summary, nil
}

func (r *Rotator) rotateColumn(col rotatedColumn) (RotationSummary, error) {
	var summary RotationSummary

	query := fmt.Sprintf(`select %s, %s from %s where %s is not null and %s <> '';`, col.key, col.column, col.table, col.column, col.column)
	rows, err := r.db.Query(query)
	if err != nil {
		return summary, fmt.Errorf("rotate %s.%s: %v", col.table, col.column, err)
	}
	defer rows.Close()

	type row struct {
		id, value string
	}
	var pending []row
	for rows.Next() {
		var rw row
		if err := rows.Scan(&rw.id, &rw.value); err != nil {
			return summary, err
		}
		pending = append(pending, rw)
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}

	update := fmt.Sprintf(`update %s set %s = ? where %s = ?;`, col.table, col.column, col.key)
	stmt, err := r.db.Prepare(update)
	if err != nil {
		return summary, err
	}
	defer stmt.Close()

	for i := range pending {
		decrypted, err := r.old.DecryptString(pending[i].value)
		if err != nil {
			summary.Failures++
			rotatedFields.With("table", col.table, "result", "failure").Add(1)
			r.logger.Log("secrets", fmt.Sprintf("unable to decrypt %s.%s id=%s: %v", col.table, col.column, pending[i].id, err))
			continue
		}
		encrypted, err := r.next.EncryptString(decrypted)
		if err != nil {
			summary.Failures++
			rotatedFields.With("table", col.table, "result", "failure").Add(1)
			continue
		}
		if _, err := stmt.Exec(encrypted, pending[i].id); err != nil {
			summary.Failures++
			rotatedFields.With("table", col.table, "result", "failure").Add(1)
			continue
		}
		summary.Rotated++
		rotatedFields.With("table", col.table, "result", "success").Add(1)
	}
	return summary, nil
}
