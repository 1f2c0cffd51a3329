package circuitbreaker

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SQLXWrapper wraps an sqlx.DB with a circuit breaker. sql.ErrNoRows is a result, not a
// failure.
type SQLXWrapper struct {
	db      *sqlx.DB
	cb      *CircuitBreaker
	service string
	logger  *zap.Logger
}

// NewSQLXWrapper creates a database wrapper with circuit breaker
func NewSQLXWrapper(db *sqlx.DB, service string, logger *zap.Logger) *SQLXWrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := NewCircuitBreaker("database", ConfigFor(ProfileDatabase), logger)
	GlobalMetricsCollector.RegisterCircuitBreaker("database", service, cb)
	return &SQLXWrapper{db: db, cb: cb, service: service, logger: logger}
}

func (w *SQLXWrapper) run(ctx context.Context, fn func() error) error {
	var inner error
	err := w.cb.Execute(ctx, func() error {
		inner = fn()
		if inner == sql.ErrNoRows {
			return nil
		}
		return inner
	})
	GlobalMetricsCollector.RecordRequest("database", w.service, w.cb.State(), err == nil)
	if err != nil {
		return err
	}
	return inner
}

// PingContext wraps PingContext with circuit breaker
func (w *SQLXWrapper) PingContext(ctx context.Context) error {
	return w.run(ctx, func() error { return w.db.PingContext(ctx) })
}

// ExecContext wraps ExecContext with circuit breaker
func (w *SQLXWrapper) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	err := w.run(ctx, func() error {
		var err error
		res, err = w.db.ExecContext(ctx, w.db.Rebind(query), args...)
		return err
	})
	return res, err
}

// NamedExecContext wraps NamedExecContext with circuit breaker
func (w *SQLXWrapper) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	var res sql.Result
	err := w.run(ctx, func() error {
		var err error
		res, err = w.db.NamedExecContext(ctx, query, arg)
		return err
	})
	return res, err
}

// GetContext wraps GetContext with circuit breaker; returns sql.ErrNoRows when nothing matched
func (w *SQLXWrapper) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return w.run(ctx, func() error {
		return w.db.GetContext(ctx, dest, w.db.Rebind(query), args...)
	})
}

// SelectContext wraps SelectContext with circuit breaker
func (w *SQLXWrapper) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return w.run(ctx, func() error {
		return w.db.SelectContext(ctx, dest, w.db.Rebind(query), args...)
	})
}

// DB returns the underlying handle
func (w *SQLXWrapper) DB() *sqlx.DB {
	return w.db
}

// Close closes the database
func (w *SQLXWrapper) Close() error {
	return w.db.Close()
}

// IsCircuitBreakerOpen returns true if the circuit breaker is open
func (w *SQLXWrapper) IsCircuitBreakerOpen() bool {
	return w.cb.State() == StateOpen
}
