package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	txs []*fakeTx
}

func (b *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{}
	b.txs = append(b.txs, tx)
	return tx, nil
}

func TestWithTxRetriesSerializationFailure(t *testing.T) {
	pool := &fakeBeginner{}
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("lock product: %w", &pgconn.PgError{Code: codeSerializationFailure})
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, pool.txs, 2)
	require.True(t, pool.txs[0].rolledBack)
	require.True(t, pool.txs[1].committed)
}

func TestWithTxDoesNotRetryBusinessErrors(t *testing.T) {
	pool := &fakeBeginner{}
	sentinel := errors.New("insufficient stock")
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
	require.True(t, pool.txs[0].rolledBack)
}

func TestWithTxGivesUpAfterMaxAttempts(t *testing.T) {
	pool := &fakeBeginner{}
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: codeDeadlockDetected}
	})
	require.Error(t, err)
	require.True(t, IsRetryable(err))
	require.Equal(t, maxTxAttempts, calls)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestMigrationsAreOrdered(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.Equal(t, []string{
		"0001_users.up.sql",
		"0002_catalog_orders.up.sql",
		"0003_admin_logs.up.sql",
	}, names)
}
