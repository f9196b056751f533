package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/iho/occledger/internal/usecase"
)

var (
	// ErrGuardClosed is returned by Acquire after Close.
	ErrGuardClosed = errors.New("connection guard closed")
	// ErrConnectionLost is returned when the connection is closed and cannot be replaced.
	ErrConnectionLost = errors.New("database connection lost")
)

// Conn is the part of *pgx.Conn the guard lends out.
type Conn interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connector opens a replacement connection.
type Connector func(ctx context.Context) (Conn, error)

// GuardOption configures a ConnGuard.
type GuardOption func(*ConnGuard)

// WithIsolation sets the isolation level of every transaction begun on a lease.
func WithIsolation(level pgx.TxIsoLevel) GuardOption {
	return func(g *ConnGuard) { g.isolation = level }
}

// WithReconnect lets the guard replace a connection found closed at acquisition.
func WithReconnect(connect Connector) GuardOption {
	return func(g *ConnGuard) { g.connect = connect }
}

// WithWaitObserver receives how long each successful Acquire waited.
func WithWaitObserver(observe func(time.Duration)) GuardOption {
	return func(g *ConnGuard) { g.observeWait = observe }
}

// ConnGuard implements usecase.ConnectionLender for a single database
// connection. At most one lease is outstanding at any time; waiters queue
// on a weighted semaphore and give up when their context is done.
type ConnGuard struct {
	sem         *semaphore.Weighted
	isolation   pgx.TxIsoLevel
	connect     Connector
	observeWait func(time.Duration)

	// guarded by sem
	conn   Conn
	closed bool
}

// NewConnGuard wraps conn. Transactions default to SERIALIZABLE.
func NewConnGuard(conn Conn, opts ...GuardOption) *ConnGuard {
	g := &ConnGuard{
		sem:         semaphore.NewWeighted(1),
		isolation:   pgx.Serializable,
		observeWait: func(time.Duration) {},
		conn:        conn,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire blocks until the connection is free or ctx is done.
func (g *ConnGuard) Acquire(ctx context.Context) (usecase.Lease, error) {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	g.observeWait(time.Since(start))

	if err := g.ensureConn(ctx); err != nil {
		g.sem.Release(1)
		return nil, err
	}

	return &lease{
		TxManager: NewTxManager(g.conn, g.isolation),
		conn:      g.conn,
		guard:     g,
	}, nil
}

// Close waits for the current lease, closes the connection and fails later acquisitions.
func (g *ConnGuard) Close(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("close connection guard: %w", err)
	}
	defer g.sem.Release(1)

	if g.closed {
		return nil
	}
	g.closed = true

	if g.conn == nil {
		return nil
	}
	return g.conn.Close(ctx)
}

// ensureConn runs with the semaphore held.
func (g *ConnGuard) ensureConn(ctx context.Context) error {
	if g.closed {
		return ErrGuardClosed
	}

	if g.conn != nil && !isClosed(g.conn) {
		return nil
	}

	if g.connect == nil {
		return ErrConnectionLost
	}

	zerolog.Ctx(ctx).Warn().Msg("database connection closed, reconnecting")

	conn, err := g.connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: reconnect: %w", ErrConnectionLost, err)
	}
	g.conn = conn

	return nil
}

// isClosed reports a dead connection when the driver can tell.
func isClosed(conn Conn) bool {
	c, ok := conn.(interface{ IsClosed() bool })
	return ok && c.IsClosed()
}

type lease struct {
	*TxManager
	conn  Conn
	guard *ConnGuard
	once  sync.Once
}

func (l *lease) Ping(ctx context.Context) error {
	return l.conn.Ping(ctx)
}

func (l *lease) Release() {
	l.once.Do(func() {
		l.guard.sem.Release(1)
	})
}
