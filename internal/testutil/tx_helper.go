package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// WithRollback runs fn inside a transaction that is always rolled back, so
// repository tests sharing one container never see each other's rows.
//
//	WithRollback(t, db.Pool, func(ctx context.Context, tx pgx.Tx) {
//	    repo := repository.NewContractRepository(tx)
//	})
func WithRollback(t *testing.T, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx)) {
	t.Helper()

	ctx := TestContext(t)
	tx, err := pool.Begin(ctx)
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			t.Errorf("failed to rollback transaction: %v", rbErr)
		}
	}()

	fn(ctx, tx)
}

// TxTestFunc is a test body that receives its own rolled-back transaction
type TxTestFunc func(t *testing.T, ctx context.Context, tx pgx.Tx)

// RunTransactionalTest runs fn as a subtest inside WithRollback
func RunTransactionalTest(t *testing.T, pool *pgxpool.Pool, name string, fn TxTestFunc) {
	t.Run(name, func(t *testing.T) {
		WithRollback(t, pool, func(ctx context.Context, tx pgx.Tx) {
			fn(t, ctx, tx)
		})
	})
}
