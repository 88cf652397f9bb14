// Package dbx provides tiny DB abstractions shared by repositories and
// services: a minimal interface (DBTX) implemented by both *sql.DB and
// *sql.Tx, a helper that runs a unit of work inside one transaction, and a
// Runner that binds that helper to a pool and a logger.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/docsync/internal/logging"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is a unit of work executed against a transactional handle.
type TxFunc func(ctx context.Context, tx DBTX) error

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown after
// the rollback. A failed rollback is joined to the error returned by fn.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit: %w", cErr)
		}
	}()

	err = fn(ctx, tx)
	return err
}

// Runner executes units of work against one pool and logs their outcome.
type Runner struct {
	db     *sql.DB
	opts   *sql.TxOptions
	logger logging.Logger
}

func NewRunner(db *sql.DB, logger logging.Logger) *Runner {
	return &Runner{db: db, logger: logger}
}

// WithOptions returns a copy of r that begins transactions with opts.
func (r *Runner) WithOptions(opts *sql.TxOptions) *Runner {
	c := *r
	c.opts = opts
	return &c
}

// DB returns the non-transactional handle for plain reads.
func (r *Runner) DB() DBTX {
	return r.db
}

func (r *Runner) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InTx runs fn inside a single transaction. See WithTx.
func (r *Runner) InTx(ctx context.Context, fn TxFunc) error {
	started := time.Now()
	err := WithTx(ctx, r.db, r.opts, fn)
	if err != nil {
		logging.FromContext(ctx, r.logger).Debug(ctx, "tx rolled back", "err", err, "took", time.Since(started))
		return err
	}
	logging.FromContext(ctx, r.logger).Debug(ctx, "tx committed", "took", time.Since(started))
	return nil
}

// InList renders "($start, $start+1, ...)" for n positional parameters.
// n must be positive.
func InList(start, n int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", start+i)
	}
	b.WriteByte(')')
	return b.String()
}
