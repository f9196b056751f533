package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/occledger/internal/usecase"
)

func newMockConn(t *testing.T) pgxmock.PgxConnIface {
	t.Helper()
	conn, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("failed to create pgxmock conn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	return conn
}

// numeric converts d for use as a query argument or result row.
func numeric(t *testing.T, d decimal.Decimal) pgtype.Numeric {
	t.Helper()
	n, err := decimalToNumeric(d)
	if err != nil {
		t.Fatalf("convert %s: %v", d, err)
	}
	return n
}

func assertExpectations(t *testing.T, conn pgxmock.PgxConnIface) {
	t.Helper()
	if err := conn.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}

// beginSerializable expects and begins one serializable transaction.
func beginSerializable(t *testing.T, conn pgxmock.PgxConnIface) usecase.Transaction {
	t.Helper()
	conn.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})

	tx, err := NewTxManager(conn, pgx.Serializable).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	return tx
}
