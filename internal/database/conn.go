package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryer is the subset of a connection or transaction the queries need.
// pgx and database/sql differ only in small ways; the adapters below hide them.
type queryer interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args ...any) (rows, error)
	queryRow(ctx context.Context, query string, args ...any) row
}

type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

type row interface {
	Scan(dest ...any) error
}

// conn is a pooled connection that can start transactions.
type conn interface {
	queryer
	begin(ctx context.Context) (txConn, error)
	ping(ctx context.Context) error
	close() error
}

type txConn interface {
	queryer
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// ----------------------------------------------------------------------------
// pgx
// ----------------------------------------------------------------------------

// pgxQuerier is implemented by both *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxQueryer struct {
	q pgxQuerier
}

func (p pgxQueryer) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := p.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p pgxQueryer) query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p pgxQueryer) queryRow(ctx context.Context, query string, args ...any) row {
	return p.q.QueryRow(ctx, query, args...)
}

type pgxConn struct {
	pgxQueryer
	pool *pgxpool.Pool
}

func newPgxConn(pool *pgxpool.Pool) *pgxConn {
	return &pgxConn{pgxQueryer: pgxQueryer{q: pool}, pool: pool}
}

func (c *pgxConn) begin(ctx context.Context) (txConn, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgxTx{pgxQueryer: pgxQueryer{q: tx}, tx: tx}, nil
}

func (c *pgxConn) ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *pgxConn) close() error {
	c.pool.Close()
	return nil
}

type pgxTx struct {
	pgxQueryer
	tx pgx.Tx
}

func (t pgxTx) commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgxTx) rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// ----------------------------------------------------------------------------
// database/sql
// ----------------------------------------------------------------------------

// sqlQuerier is implemented by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlQueryer struct {
	q sqlQuerier
}

func (s sqlQueryer) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s sqlQueryer) query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (s sqlQueryer) queryRow(ctx context.Context, query string, args ...any) row {
	return s.q.QueryRowContext(ctx, query, args...)
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

type sqlConn struct {
	sqlQueryer
	db *sql.DB
}

func newSQLConn(db *sql.DB) *sqlConn {
	return &sqlConn{sqlQueryer: sqlQueryer{q: db}, db: db}
}

func (c *sqlConn) begin(ctx context.Context) (txConn, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTx{sqlQueryer: sqlQueryer{q: tx}, tx: tx}, nil
}

func (c *sqlConn) ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *sqlConn) close() error                   { return c.db.Close() }

type sqlTx struct {
	sqlQueryer
	tx *sql.Tx
}

func (t sqlTx) commit(context.Context) error   { return t.tx.Commit() }
func (t sqlTx) rollback(context.Context) error { return t.tx.Rollback() }
