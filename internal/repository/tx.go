package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrVersionConflict signals a lost optimistic-concurrency race.
var ErrVersionConflict = errors.New("record version changed concurrently")

// TxManager runs units of work in a single transaction.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs the manager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx commits when fn returns nil and rolls back otherwise.
func (m *TxManager) WithTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// nextSequence bumps a named counter inside the caller's transaction.
func nextSequence(ctx context.Context, exec sqlx.ExtContext, name string) (int64, error) {
	const query = `INSERT INTO id_sequences (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = id_sequences.value + 1
RETURNING value`
	var value int64
	if err := sqlx.GetContext(ctx, exec, &value, exec.Rebind(query), name); err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", name, err)
	}
	return value, nil
}

func expectOneRow(res interface{ RowsAffected() (int64, error) }, what string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", what, err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}
