// Package data is the data-access surface modules use to query the inspected
// instance's database. It executes inline statements or named scripts over a single
// shared connection and returns scalars or tabular result sets.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Executor is what modules see of the database.
type Executor interface {
	// Scalar returns the first column of the first row, or ErrNoRows.
	Scalar(ctx context.Context, query string, args ...any) (any, error)

	// Query returns the first result set of query.
	Query(ctx context.Context, query string, args ...any) (*Table, error)

	// QuerySet returns every result set produced by query.
	QuerySet(ctx context.Context, query string, args ...any) (DataSet, error)

	// ScriptScalar is Scalar for a named script.
	ScriptScalar(ctx context.Context, ref string, args ...any) (any, error)

	// ScriptQuery is QuerySet for a named script.
	ScriptQuery(ctx context.Context, ref string, args ...any) (DataSet, error)

	Close() error
}

// Counter is implemented by executors that count the statements they send.
type Counter interface {
	QueryCount() int64
}

// ScriptLoader resolves a named script reference ("Category/Name") to SQL text.
// Implementations return *ScriptNotFoundError for unknown references.
type ScriptLoader interface {
	LoadScript(ref string) (string, error)
}

// Options tune a DB. The zero value is valid: no scripts, no pacing, no timeout.
type Options struct {
	Scripts ScriptLoader

	// QueriesPerSecond paces statements against production databases. 0 disables.
	QueriesPerSecond float64
	Burst            int

	// QueryTimeout bounds each statement. 0 leaves timeouts to the driver.
	QueryTimeout time.Duration

	Logger *slog.Logger
}

// DB executes statements over one connection. Statement execution, including
// reading its rows, is mutually exclusive.
type DB struct {
	db      *sql.DB
	kind    string
	scripts ScriptLoader
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	connected bool
	connErr   error

	queries atomic.Int64
}

var (
	_ Executor = (*DB)(nil)
	_ Counter  = (*DB)(nil)
)

// Open prepares a DB for cfg. No connection is made until the first statement.
func Open(cfg Config, opts Options) (*DB, error) {
	name, err := cfg.driverName()
	if err != nil {
		return nil, &ConnectionError{Driver: cfg.Driver, Err: err}
	}
	dsn, err := cfg.ConnectionString()
	if err != nil {
		return nil, &ConnectionError{Driver: cfg.Kind(), Err: err}
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, &ConnectionError{Driver: cfg.Kind(), Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &DB{
		db:      db,
		kind:    cfg.Kind(),
		scripts: opts.Scripts,
		timeout: opts.QueryTimeout,
		logger:  logger.With("component", "data", "driver", cfg.Kind()),
	}
	if opts.QueriesPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.QueriesPerSecond), burst)
	}
	return d, nil
}

// Kind returns the driver kind (DriverSQLServer, DriverPostgres or DriverSQLite).
func (d *DB) Kind() string {
	return d.kind
}

// QueryCount returns the number of statements sent to the database so far.
func (d *DB) QueryCount() int64 {
	return d.queries.Load()
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// connect pings the database once. Callers must hold d.mu.
func (d *DB) connect(ctx context.Context) error {
	if d.connected {
		return d.connErr
	}
	err := d.db.PingContext(ctx)
	if err != nil && ctx.Err() != nil {
		// A cancelled caller says nothing about reachability; leave it for the next one.
		return &ConnectionError{Driver: d.kind, Err: err}
	}
	d.connected = true
	if err != nil {
		d.connErr = &ConnectionError{Driver: d.kind, Err: err}
		d.logger.Warn("database unreachable", "error", err)
	} else {
		d.logger.Debug("database connected")
	}
	return d.connErr
}

// run executes query and hands its rows to read while holding the connection.
func (d *DB) run(ctx context.Context, query string, args []any, read func(*sql.Rows) error) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return &QueryExecutionError{Query: query, Err: err}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.connect(ctx); err != nil {
		return err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	d.queries.Add(1)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return &QueryExecutionError{Query: query, Err: err}
	}
	defer rows.Close()

	if err := read(rows); err != nil {
		if errors.Is(err, ErrNoRows) {
			return ErrNoRows
		}
		return &QueryExecutionError{Query: query, Err: err}
	}
	d.logger.Debug("query executed", "durationMs", time.Since(start).Milliseconds())
	return nil
}

// Scalar implements Executor.
func (d *DB) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	var value any
	err := d.run(ctx, query, args, func(rows *sql.Rows) error {
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return fmt.Errorf("statement returned no columns")
		}
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return ErrNoRows
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		value = values[0]
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Query implements Executor.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Table, error) {
	var table *Table
	err := d.run(ctx, query, args, func(rows *sql.Rows) error {
		t, err := readTable(rows)
		table = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// QuerySet implements Executor.
func (d *DB) QuerySet(ctx context.Context, query string, args ...any) (DataSet, error) {
	var set DataSet
	err := d.run(ctx, query, args, func(rows *sql.Rows) error {
		for {
			t, err := readTable(rows)
			if err != nil {
				return err
			}
			set = append(set, t)
			if !rows.NextResultSet() {
				return rows.Err()
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// ScriptScalar implements Executor.
func (d *DB) ScriptScalar(ctx context.Context, ref string, args ...any) (any, error) {
	query, err := d.loadScript(ref)
	if err != nil {
		return nil, err
	}
	return d.Scalar(ctx, query, args...)
}

// ScriptQuery implements Executor.
func (d *DB) ScriptQuery(ctx context.Context, ref string, args ...any) (DataSet, error) {
	query, err := d.loadScript(ref)
	if err != nil {
		return nil, err
	}
	return d.QuerySet(ctx, query, args...)
}

func (d *DB) loadScript(ref string) (string, error) {
	if d.scripts == nil {
		return "", &ScriptNotFoundError{Ref: ref, Err: fmt.Errorf("no script store configured")}
	}
	text, err := d.scripts.LoadScript(ref)
	if err != nil {
		var notFound *ScriptNotFoundError
		if errors.As(err, &notFound) {
			return "", err
		}
		return "", &ScriptNotFoundError{Ref: ref, Err: err}
	}
	return text, nil
}
