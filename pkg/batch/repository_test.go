// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package batch

import (
	"testing"

	"github.com/ledgerline/settler/internal/database"
	"github.com/ledgerline/settler/pkg/id"

	"github.com/moov-io/base"
	"github.com/stretchr/testify/require"
)

func testRepository(t *testing.T) (Repository, func()) {
	t.Helper()

	db := database.CreateTestSqliteDB(t)
	repo := NewRepository(db.DB)
	return repo, func() { db.Close() }
}

func TestRepository__lifecycle(t *testing.T) {
	repo, done := testRepository(t)
	defer done()

	batchID := id.Batch(base.ID())
	require.NoError(t, repo.Create(&Batch{
		ID:             batchID,
		ProfileName:    "default",
		ProfileVersion: "1",
	}))

	b, err := repo.Get(batchID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, b.Status)

	totals := Totals{Debit: 4050, EntryHash: 69336030, Entries: 3}
	require.NoError(t, repo.MarkExported(batchID, "settlement-20200827.ach", totals))

	b, err = repo.Get(batchID)
	require.NoError(t, err)
	require.Equal(t, StatusExported, b.Status)
	require.Equal(t, "settlement-20200827.ach", b.Filename)
	require.Equal(t, int64(4050), b.DebitTotal)
	require.Equal(t, 3, b.EntryCount)
	require.False(t, b.ExportedAt.IsZero())

	require.NoError(t, repo.MarkFailed(batchID, "upload: connection reset"))

	b, err = repo.Get(batchID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, b.Status)
	require.Equal(t, "upload: connection reset", b.LastError)
	// the generated file survives a failure
	require.Equal(t, "settlement-20200827.ach", b.Filename)

	require.NoError(t, repo.MarkUploaded(batchID))

	b, err = repo.Get(batchID)
	require.NoError(t, err)
	require.Equal(t, StatusUploaded, b.Status)
	require.Empty(t, b.LastError)
	require.False(t, b.UploadedAt.IsZero())
}

func TestRepository__entries(t *testing.T) {
	repo, done := testRepository(t)
	defer done()

	batchID := id.Batch(base.ID())
	require.NoError(t, repo.Create(&Batch{ID: batchID, ProfileName: "default", ProfileVersion: "1"}))

	err := repo.SaveEntries([]*Entry{
		{BatchID: batchID, OrderID: "order-1", AmountCents: 1000, TransactionCode: "27", AccountMasked: "*8121", TraceNumber: "231380100000001"},
		{BatchID: batchID, OrderID: "order-2", AmountCents: 2550, TransactionCode: "37", AccountMasked: "*2213", TraceNumber: "231380100000002"},
	})
	require.NoError(t, err)

	entries, err := repo.Entries(batchID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, id.Order("order-1"), entries[0].OrderID)
	require.Equal(t, int64(1000), entries[0].AmountCents)
	require.Equal(t, "231380100000002", entries[1].TraceNumber)

	// double insert of the same order violates the unique index
	err = repo.SaveEntries([]*Entry{
		{BatchID: batchID, OrderID: "order-1", AmountCents: 1000, TransactionCode: "27", TraceNumber: "231380100000001"},
	})
	require.Error(t, err)
}

func TestRepository__notFound(t *testing.T) {
	repo, done := testRepository(t)
	defer done()

	if _, err := repo.Get(id.Batch("missing")); err != ErrNotFound {
		t.Errorf("got %v", err)
	}
	if err := repo.MarkUploaded(id.Batch("missing")); err != ErrNotFound {
		t.Errorf("got %v", err)
	}
	if err := repo.MarkFailed(id.Batch("missing"), "nope"); err != ErrNotFound {
		t.Errorf("got %v", err)
	}
}
