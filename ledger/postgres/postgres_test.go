//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/speechgate"
	ledgerpg "github.com/ineyio/speechgate/ledger/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "postgres://localhost:5432/speechgate_test?sslmode=disable"
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("postgres not available: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newTestStore(t *testing.T, pool *pgxpool.Pool) *ledgerpg.Store {
	t.Helper()
	// Use a unique prefix per test to avoid collisions.
	prefix := fmt.Sprintf("test_%s_", strings.ToLower(t.Name()))
	s := ledgerpg.New(pool, ledgerpg.WithTablePrefix(prefix))

	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %sledger", prefix))
	})
	return s
}

func TestLoadEmptyTable(t *testing.T) {
	store := newTestStore(t, newTestPool(t))

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state != (speechgate.LedgerState{}) {
		t.Fatalf("expected zero state, got %+v", state)
	}
}

func TestSaveUpserts(t *testing.T) {
	store := newTestStore(t, newTestPool(t))
	ctx := context.Background()

	if err := store.Save(ctx, speechgate.LedgerState{ProcessedSeconds: 15, PeriodAnchor: "16/10/2026"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	want := speechgate.LedgerState{ProcessedSeconds: 3571.25, PeriodAnchor: "17/10/2026"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	store := newTestStore(t, newTestPool(t))

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second ensure schema: %v", err)
	}
}

func TestLedgerRolloverPersisted(t *testing.T) {
	store := newTestStore(t, newTestPool(t))
	ctx := context.Background()

	period := speechgate.DefaultPeriod()
	period.Rollover = speechgate.RolloverCharge

	day1 := time.Date(2026, 10, 16, 20, 0, 0, 0, period.Location)
	day2 := day1.Add(24 * time.Hour)

	l, err := speechgate.OpenLedger(ctx, store, speechgate.WithPeriod(period))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := l.Charge(ctx, 3000, day1); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if _, err := l.Charge(ctx, 20, day2); err != nil {
		t.Fatalf("charge: %v", err)
	}

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.ProcessedSeconds != 20 || state.PeriodAnchor != "17/10/2026" {
		t.Fatalf("unexpected state after rollover: %+v", state)
	}
}
