// Package redis provides a Redis-backed LedgerStore for speechgate.
//
// The ledger is stored in a single Redis hash with the fields
// processed_seconds and period_anchor. Save writes both fields in one HSET,
// so readers never observe a half-written record.
package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/speechgate"
)

const (
	fieldSeconds = "processed_seconds"
	fieldAnchor  = "period_anchor"
)

// Store is a Redis-backed LedgerStore.
type Store struct {
	client goredis.Cmdable
	key    string
}

var _ speechgate.LedgerStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKey sets the Redis hash key (default "speechgate:ledger").
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a new Redis-backed LedgerStore.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		key:    "speechgate:ledger",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the hash key holding the ledger.
func (s *Store) Key() string { return s.key }

// Load reads the ledger hash. A missing key is the zero state.
func (s *Store) Load(ctx context.Context) (speechgate.LedgerState, error) {
	vals, err := s.client.HMGet(ctx, s.key, fieldSeconds, fieldAnchor).Result()
	if err != nil {
		return speechgate.LedgerState{}, fmt.Errorf("speechgate/redis: load: %w", err)
	}

	var state speechgate.LedgerState
	if raw, ok := vals[0].(string); ok && raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return speechgate.LedgerState{}, fmt.Errorf("%w: %s=%q", speechgate.ErrLedgerCorrupt, fieldSeconds, raw)
		}
		state.ProcessedSeconds = secs
	}
	if raw, ok := vals[1].(string); ok {
		state.PeriodAnchor = raw
	}
	return state, nil
}

// Save replaces both ledger fields.
func (s *Store) Save(ctx context.Context, state speechgate.LedgerState) error {
	err := s.client.HSet(ctx, s.key,
		fieldSeconds, strconv.FormatFloat(state.ProcessedSeconds, 'f', -1, 64),
		fieldAnchor, state.PeriodAnchor,
	).Err()
	if err != nil {
		return fmt.Errorf("speechgate/redis: save: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("speechgate/redis: ping: %w", err)
	}
	return nil
}
