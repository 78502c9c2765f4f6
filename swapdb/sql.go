package swapdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightningnetwork/lnd/clock"
)

//go:embed migrations/*.up.sql
var sqlSchemas embed.FS

// TxOptions represents a set of options one can use to control what type of
// database transaction is created.
type TxOptions interface {
	// ReadOnly returns true if the transaction should be read only.
	ReadOnly() bool
}

// SqlTxOptions is the set of db txn options used by the swap store.
type SqlTxOptions struct {
	readOnly bool
}

// NewSqlReadOpts returns a new SqlTxOptions instance that triggers a read
// transaction.
func NewSqlReadOpts() *SqlTxOptions {
	return &SqlTxOptions{
		readOnly: true,
	}
}

// NewSqlWriteOpts returns a new SqlTxOptions instance that triggers a write
// transaction.
func NewSqlWriteOpts() *SqlTxOptions {
	return &SqlTxOptions{}
}

// ReadOnly returns true if the transaction should be read only.
//
// NOTE: This implements the TxOptions interface.
func (r *SqlTxOptions) ReadOnly() bool {
	return r.readOnly
}

// BaseDB is the base database struct that each sql backend embeds to gain
// the swap store implementation.
type BaseDB struct {
	*sql.DB

	clock clock.Clock
}

// A compile-time flag to ensure that BaseDB implements the SwapStore
// interface.
var _ SwapStore = (*BaseDB)(nil)

// BeginTx wraps the normal sql specific BeginTx method with the TxOptions
// interface.
func (db *BaseDB) BeginTx(ctx context.Context,
	opts TxOptions) (*sql.Tx, error) {

	sqlOptions := sql.TxOptions{
		ReadOnly: opts.ReadOnly(),
	}
	return db.DB.BeginTx(ctx, &sqlOptions)
}

// ExecTx runs txBody within a single database transaction, committing it if
// txBody succeeds.
func (db *BaseDB) ExecTx(ctx context.Context, txOptions TxOptions,
	txBody func(*sql.Tx) error) error {

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	// Rollback is safe to call even if the tx is already closed, so if
	// the tx commits successfully, this is a no-op.
	defer tx.Rollback() //nolint: errcheck

	if err := txBody(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateSwap stores a new swap.
//
// NOTE: Part of the SwapStore interface.
func (db *BaseDB) CreateSwap(ctx context.Context,
	params *swapparams.Store) error {

	id := params.ID()

	return db.ExecTx(ctx, NewSqlWriteOpts(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx, `INSERT INTO swaps (id, created_at) VALUES ($1, $2)`,
			id[:], db.clock.Now().UTC(),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrSwapExists, id)
		}
		if err != nil {
			return err
		}

		return insertParams(ctx, tx, params)
	})
}

// PersistSwap replaces the stored parameters of an existing swap.
//
// NOTE: Part of the SwapStore interface.
func (db *BaseDB) PersistSwap(ctx context.Context,
	params *swapparams.Store) error {

	id := params.ID()

	return db.ExecTx(ctx, NewSqlWriteOpts(), func(tx *sql.Tx) error {
		if err := swapExists(ctx, tx, id); err != nil {
			return err
		}

		_, err := tx.ExecContext(
			ctx, `DELETE FROM swap_params WHERE swap_id = $1`, id[:],
		)
		if err != nil {
			return err
		}

		return insertParams(ctx, tx, params)
	})
}

// LoadSwap returns the parameters of one swap.
//
// NOTE: Part of the SwapStore interface.
func (db *BaseDB) LoadSwap(ctx context.Context,
	id swapparams.TxID) (*swapparams.Store, error) {

	var params *swapparams.Store
	err := db.ExecTx(ctx, NewSqlReadOpts(), func(tx *sql.Tx) error {
		if err := swapExists(ctx, tx, id); err != nil {
			return err
		}

		var err error
		params, err = selectParams(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return params, nil
}

// FetchSwaps returns all stored swaps in the order they were created.
//
// NOTE: Part of the SwapStore interface.
func (db *BaseDB) FetchSwaps(ctx context.Context) ([]*swapparams.Store,
	error) {

	var swaps []*swapparams.Store
	err := db.ExecTx(ctx, NewSqlReadOpts(), func(tx *sql.Tx) error {
		ids, err := selectSwapIDs(ctx, tx)
		if err != nil {
			return err
		}

		for _, id := range ids {
			params, err := selectParams(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("swap %v: %w", id, err)
			}
			swaps = append(swaps, params)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return swaps, nil
}

// DeleteSwap removes a swap and its parameters.
//
// NOTE: Part of the SwapStore interface.
func (db *BaseDB) DeleteSwap(ctx context.Context, id swapparams.TxID) error {
	return db.ExecTx(ctx, NewSqlWriteOpts(), func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx, `DELETE FROM swaps WHERE id = $1`, id[:],
		)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
		}

		return nil
	})
}

// Close closes the underlying database.
//
// NOTE: Part of the SwapStore interface.
func (db *BaseDB) Close() error {
	return db.DB.Close()
}

func swapExists(ctx context.Context, tx *sql.Tx, id swapparams.TxID) error {
	var n int
	err := tx.QueryRowContext(
		ctx, `SELECT 1 FROM swaps WHERE id = $1`, id[:],
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
	}

	return err
}

func insertParams(ctx context.Context, tx *sql.Tx,
	params *swapparams.Store) error {

	id := params.ID()
	for _, p := range params.Params() {
		// A nil slice would be stored as NULL.
		value := p.Value.Encode()
		if value == nil {
			value = []byte{}
		}

		_, err := tx.ExecContext(
			ctx, `INSERT INTO swap_params (
				swap_id, kind, slot, value_type, value
			) VALUES ($1, $2, $3, $4, $5)`,
			id[:], int64(p.Kind), int64(p.Slot),
			int64(p.Value.Type()), value,
		)
		if err != nil {
			return fmt.Errorf("insert %v/%v: %w", p.Kind, p.Slot,
				err)
		}
	}

	return nil
}

func selectSwapIDs(ctx context.Context, tx *sql.Tx) ([]swapparams.TxID,
	error) {

	rows, err := tx.QueryContext(
		ctx, `SELECT id FROM swaps ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []swapparams.TxID
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}

		id, err := swapparams.TxIDFromBytes(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func selectParams(ctx context.Context, tx *sql.Tx,
	id swapparams.TxID) (*swapparams.Store, error) {

	rows, err := tx.QueryContext(
		ctx, `SELECT kind, slot, value_type, value FROM swap_params
		WHERE swap_id = $1 ORDER BY kind, slot`, id[:],
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []swapparams.Param
	for rows.Next() {
		var (
			kind, slot, typ int64
			value           []byte
		)
		if err := rows.Scan(&kind, &slot, &typ, &value); err != nil {
			return nil, err
		}

		if kind < 0 || kind > 255 || slot < 0 || slot > 255 ||
			typ < 0 || typ > 255 {

			return nil, fmt.Errorf("malformed parameter row "+
				"%d/%d/%d", kind, slot, typ)
		}

		p, err := newParam(uint8(kind), uint8(slot), uint8(typ), value)
		params, err = appendParam(params, p, err)
		if err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return swapparams.NewStoreFromParams(id, params)
}
