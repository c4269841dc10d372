package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"
)

// TransactionExecutionError wraps the error returned by the function run inside a transaction, telling it apart
// from failures to begin or commit the transaction.
type TransactionExecutionError struct {
	err error
}

func NewTransactionExecutionError(err error) *TransactionExecutionError {
	return &TransactionExecutionError{err: err}
}

func (t *TransactionExecutionError) Error() string {
	return "transaction execution error: " + t.err.Error()
}

func (t *TransactionExecutionError) Unwrap() error {
	return t.err
}

func IsTransactionExecutionError(err error) bool {
	var execErr *TransactionExecutionError
	return errors.As(err, &execErr)
}

// RunInTransactionWithResult runs fn in a transaction of pool and commits it when fn succeeds. Any failure after
// the transaction began rolls it back, a panic in fn included. The panic is then re-raised.
func RunInTransactionWithResult[T any](ctx context.Context, pool DBConnectionPool, opts *sql.TxOptions, fn func(dbTx DBTransaction) (T, error)) (T, error) {
	var zero T

	dbTx, err := pool.BeginTxx(ctx, opts)
	if err != nil {
		return zero, fmt.Errorf("creating db transaction: %w", err)
	}

	fnReturned := false
	defer func() {
		if !fnReturned {
			rollback(ctx, dbTx, errors.New("transaction function panicked"))
		}
	}()

	result, err := fn(dbTx)
	fnReturned = true
	if err != nil {
		err = NewTransactionExecutionError(err)
		rollback(ctx, dbTx, err)
		return zero, err
	}

	if err = dbTx.Commit(); err != nil {
		err = fmt.Errorf("committing transaction: %w", err)
		rollback(ctx, dbTx, err)
		return zero, err
	}

	return result, nil
}

func RunInTransaction(ctx context.Context, pool DBConnectionPool, opts *sql.TxOptions, fn func(dbTx DBTransaction) error) error {
	_, err := RunInTransactionWithResult(ctx, pool, opts, func(dbTx DBTransaction) (struct{}, error) {
		return struct{}{}, fn(dbTx)
	})
	return err
}

// rollback logs cause at debug level when it came from the transaction's function, those errors are reported by
// the caller. Failures of the transaction itself are logged as errors.
func rollback(ctx context.Context, dbTx DBTransaction, cause error) {
	if IsTransactionExecutionError(cause) {
		log.Ctx(ctx).Debugf("rolling back transaction: %v", cause)
	} else {
		log.Ctx(ctx).Errorf("rolling back transaction: %v", cause)
	}

	if err := dbTx.Rollback(); err != nil {
		log.Ctx(ctx).Errorf("rolling back transaction: %v", err)
	}
}
