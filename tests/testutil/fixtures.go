package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	postgresRepo "github.com/iho/occledger/internal/adapter/repository/postgres"
	"github.com/iho/occledger/internal/domain"
	"github.com/iho/occledger/internal/infrastructure/postgres"
)

// TestDB holds a fixture connection to the test database. Code under test
// opens its own connections through NewGuard.
type TestDB struct {
	URL  string
	Conn *pgx.Conn
	t    *testing.T
}

// NewTestDB connects to DATABASE_URL and applies migrations. The test is
// skipped when DATABASE_URL is unset or -short is given.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(Context(t), 10*time.Second)
	defer cancel()

	if err := postgres.RunMigrations(ctx, dbURL, migrationsPath()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	conn, err := postgres.Connect(ctx, dbURL, 5*time.Second)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := &TestDB{URL: dbURL, Conn: conn, t: t}
	t.Cleanup(db.Cleanup)

	return db
}

// migrationsPath finds the migrations directory from the repo root or a test package.
func migrationsPath() string {
	for _, p := range []string{"migrations", "../migrations", "../../migrations"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "migrations"
}

// Context returns a context carrying a logger that writes to the test log.
func Context(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.InfoLevel)
	return logger.WithContext(context.Background())
}

// Cleanup closes the fixture connection.
func (db *TestDB) Cleanup() {
	_ = db.Conn.Close(context.Background())
}

// NewGuard opens a fresh connection wrapped in a serializable guard.
func (db *TestDB) NewGuard(ctx context.Context) *postgresRepo.ConnGuard {
	db.t.Helper()

	conn, err := postgres.Connect(ctx, db.URL, 5*time.Second)
	if err != nil {
		db.t.Fatalf("failed to connect: %v", err)
	}

	guard := postgresRepo.NewConnGuard(conn, postgresRepo.WithIsolation(pgx.Serializable))
	db.t.Cleanup(func() { _ = guard.Close(context.Background()) })

	return guard
}

// TruncateAll removes all accounts.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	if _, err := db.Conn.Exec(ctx, `TRUNCATE TABLE accounts`); err != nil {
		db.t.Fatalf("failed to truncate accounts: %v", err)
	}
}

// CreateAccount inserts an account with the given balance.
func (db *TestDB) CreateAccount(ctx context.Context, id domain.AccountID, balance string) {
	db.t.Helper()

	_, err := db.Conn.Exec(ctx,
		`INSERT INTO accounts (id, balance) VALUES ($1, $2::numeric)`,
		id.String(), balance)
	if err != nil {
		db.t.Fatalf("failed to create account %s: %v", id, err)
	}
}

// Balance reads the committed balance of an account.
func (db *TestDB) Balance(ctx context.Context, id domain.AccountID) decimal.Decimal {
	db.t.Helper()

	var balance string
	if err := db.Conn.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1`, id.String()).Scan(&balance); err != nil {
		db.t.Fatalf("failed to read balance of %s: %v", id, err)
	}
	return decimal.RequireFromString(balance)
}

// Total sums every balance.
func (db *TestDB) Total(ctx context.Context) decimal.Decimal {
	db.t.Helper()

	var total string
	if err := db.Conn.QueryRow(ctx, `SELECT COALESCE(sum(balance), 0)::text FROM accounts`).Scan(&total); err != nil {
		db.t.Fatalf("failed to sum balances: %v", err)
	}
	return decimal.RequireFromString(total)
}
