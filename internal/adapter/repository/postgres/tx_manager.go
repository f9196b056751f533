package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/occledger/internal/usecase"
)

var tracer = otel.Tracer("occledger/postgres")

// ErrUnknownIsolation is returned by ParseIsolation for unsupported names.
var ErrUnknownIsolation = errors.New("unknown isolation level")

// ParseIsolation maps a config name to a pgx isolation level.
// "default" leaves the server default in place.
func ParseIsolation(name string) (pgx.TxIsoLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "serializable":
		return pgx.Serializable, nil
	case "repeatable_read", "repeatable read":
		return pgx.RepeatableRead, nil
	case "read_committed", "read committed":
		return pgx.ReadCommitted, nil
	case "default":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownIsolation, name)
	}
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxManager implements usecase.TransactionManager on one connection.
type TxManager struct {
	conn txBeginner
	opts pgx.TxOptions
}

// NewTxManager creates a TxManager that begins transactions at the given isolation.
func NewTxManager(conn txBeginner, isolation pgx.TxIsoLevel) *TxManager {
	return &TxManager{
		conn: conn,
		opts: pgx.TxOptions{IsoLevel: isolation},
	}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(m.opts.IsoLevel)),
		))

	tx, err := m.conn.BeginTx(ctx, m.opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin")
		span.End()
		return nil, err
	}

	return &Tx{tx: tx, span: span}, nil
}

// Tx wraps a pgx transaction and its tracing span.
type Tx struct {
	tx   pgx.Tx
	span trace.Span
	once sync.Once
}

// Commit commits the transaction. The pgx error is returned unwrapped so the
// SQLSTATE stays visible to the conflict classifier.
func (t *Tx) Commit(ctx context.Context) error {
	err := t.tx.Commit(ctx)
	if err != nil {
		t.span.RecordError(err)
		if code := sqlState(err); code != "" {
			t.span.SetAttributes(attribute.String("db.sqlstate", code))
		}
		t.end(codes.Error, "commit")
		return err
	}

	t.end(codes.Ok, "")
	return nil
}

// Rollback rolls back the transaction. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	t.end(codes.Unset, "")

	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}

	return err
}

// PgxTx returns the underlying pgx.Tx.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}

func (t *Tx) end(code codes.Code, description string) {
	t.once.Do(func() {
		if code != codes.Unset {
			t.span.SetStatus(code, description)
		}
		t.span.End()
	})
}

// pgxTx unwraps a usecase.Transaction handed out by TxManager.
func pgxTx(tx usecase.Transaction) (pgx.Tx, error) {
	wrapped, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("postgres: unsupported transaction type %T", tx)
	}
	return wrapped.PgxTx(), nil
}
