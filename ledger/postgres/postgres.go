// Package postgres provides a PostgreSQL-backed LedgerStore for speechgate.
//
// The ledger is a single row in a table keyed by a fixed id, written with an
// upsert. This provides durability across restarts and hosts.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/speechgate"
)

const ledgerID = "global"

// Store is a PostgreSQL-backed LedgerStore.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var _ speechgate.LedgerStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "speechgate_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a new PostgreSQL-backed LedgerStore.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "speechgate_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ledgerTable() string { return s.tablePrefix + "ledger" }

// EnsureSchema creates the ledger table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			processed_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			period_anchor TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`, s.ledgerTable())
	_, err := s.pool.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("speechgate/postgres: ensure schema: %w", err)
	}
	return nil
}

// Load reads the ledger row. A missing row is the zero state.
func (s *Store) Load(ctx context.Context) (speechgate.LedgerState, error) {
	var state speechgate.LedgerState
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT processed_seconds, period_anchor FROM %s WHERE id = $1`, s.ledgerTable()),
		ledgerID,
	).Scan(&state.ProcessedSeconds, &state.PeriodAnchor)

	if errors.Is(err, pgx.ErrNoRows) {
		return speechgate.LedgerState{}, nil
	}
	if err != nil {
		return speechgate.LedgerState{}, fmt.Errorf("speechgate/postgres: load: %w", err)
	}
	return state, nil
}

// Save upserts the ledger row.
func (s *Store) Save(ctx context.Context, state speechgate.LedgerState) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, processed_seconds, period_anchor, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (id) DO UPDATE SET processed_seconds = $2, period_anchor = $3, updated_at = now()`,
			s.ledgerTable()),
		ledgerID, state.ProcessedSeconds, state.PeriodAnchor,
	)
	if err != nil {
		return fmt.Errorf("speechgate/postgres: save: %w", err)
	}
	return nil
}
