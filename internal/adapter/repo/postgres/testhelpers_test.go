package postgres_test

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// assign copies vals into scan destinations. nil values leave the destination untouched.
func assign(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		dv := reflect.ValueOf(dest[i]).Elem()
		vv := reflect.ValueOf(v)
		if !vv.Type().AssignableTo(dv.Type()) {
			return fmt.Errorf("scan %d: cannot assign %T to %s", i, v, dv.Type())
		}
		dv.Set(vv)
	}
	return nil
}

// rowStub implements pgx.Row
type rowStub struct {
	vals []any
	err  error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

// rowsStub implements the parts of pgx.Rows the repositories use.
type rowsStub struct {
	pgx.Rows
	data   [][]any
	i      int
	err    error
	closed bool
}

func (r *rowsStub) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *rowsStub) Scan(dest ...any) error { return assign(dest, r.data[r.i-1]) }

func (r *rowsStub) Close() { r.closed = true }

func (r *rowsStub) Err() error { return r.err }

type execCall struct {
	sql  string
	args []any
}

type execResult struct {
	tag string
	err error
}

// poolStub implements postgres.PgxPool for tests. Exec results are consumed
// in order; when exhausted every Exec succeeds with "INSERT 0 1".
type poolStub struct {
	execs       []execCall
	execResults []execResult

	row       rowStub
	rows      *rowsStub
	queryErr  error
	lastQuery string
	lastArgs  []any

	beginErr  error
	commitErr error
	tx        *txStub

	copyTable pgx.Identifier
	copyCols  []string
	copied    [][]any
	copyErr   error
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	if len(p.execResults) == 0 {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	res := p.execResults[0]
	p.execResults = p.execResults[1:]
	return pgconn.NewCommandTag(res.tag), res.err
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.lastQuery, p.lastArgs = sql, args
	if p.row.vals == nil && p.row.err == nil {
		return rowStub{err: fmt.Errorf("no row configured")}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.lastQuery, p.lastArgs = sql, args
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.rows == nil {
		p.rows = &rowsStub{}
	}
	return p.rows, nil
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	p.tx = &txStub{pool: p}
	return p.tx, nil
}

func (p *poolStub) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if p.copyErr != nil {
		return 0, p.copyErr
	}
	p.copyTable, p.copyCols = table, cols
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		p.copied = append(p.copied, vals)
	}
	return int64(len(p.copied)), src.Err()
}

// txStub routes Exec to the pool and records the outcome.
type txStub struct {
	pgx.Tx
	pool       *poolStub
	committed  bool
	rolledBack bool
}

func (t *txStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.pool.Exec(ctx, sql, args...)
}

func (t *txStub) Commit(context.Context) error {
	if t.pool.commitErr != nil {
		return t.pool.commitErr
	}
	t.committed = true
	return nil
}

func (t *txStub) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
