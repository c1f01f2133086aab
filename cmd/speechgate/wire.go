package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	sg "github.com/ineyio/speechgate"
	"github.com/ineyio/speechgate/engine/googlespeech"
	"github.com/ineyio/speechgate/engine/mock"
	"github.com/ineyio/speechgate/engine/openaicompat"
	"github.com/ineyio/speechgate/engine/whispercli"
	"github.com/ineyio/speechgate/ledger"
	ledgerpg "github.com/ineyio/speechgate/ledger/postgres"
	ledgerredis "github.com/ineyio/speechgate/ledger/redis"
	"github.com/ineyio/speechgate/policy"
)

// openStore builds the configured ledger store and a func releasing its resources.
func openStore(ctx context.Context, cfg sg.LedgerConfig) (sg.LedgerStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		return ledger.NewMemoryStore(sg.LedgerState{}), func() {}, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := ledgerredis.New(client, ledgerredis.WithKey(cfg.Redis.Key))
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() { client.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("speechgate: connect postgres: %w", err)
		}
		store := ledgerpg.New(pool, ledgerpg.WithTablePrefix(cfg.Postgres.TablePrefix))
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		return ledger.NewFileStore(cfg.Path, ledger.WithCreateIfMissing(cfg.CreateIfMissing)), func() {}, nil
	}
}

// buildEngine leaves HTTP clients without their own timeout; the dispatcher bounds
// each call with cfg.Timeout so an overrun surfaces as ErrEngineTimeout.
func buildEngine(cfg sg.EngineConfig) (sg.Engine, error) {
	client := &http.Client{}

	switch cfg.Engine {
	case "googlespeech":
		opts := []googlespeech.Option{googlespeech.WithHTTPClient(client)}
		if cfg.BaseURL != "" {
			opts = append(opts, googlespeech.WithBaseURL(cfg.BaseURL))
		}
		return googlespeech.New(cfg.APIKey, opts...), nil

	case "openaicompat":
		opts := []openaicompat.Option{openaicompat.WithHTTPClient(client), openaicompat.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openaicompat.WithModel(cfg.Model))
		}
		return openaicompat.New("openaicompat", cfg.BaseURL, opts...), nil

	case "whispercli":
		var opts []whispercli.Option
		if cfg.Binary != "" {
			opts = append(opts, whispercli.WithBinary(cfg.Binary))
		}
		return whispercli.New(cfg.ModelPath, opts...), nil

	case "mock":
		return mock.New(mock.WithName("mock-" + cfg.Language)), nil

	default:
		return nil, fmt.Errorf("speechgate: unknown engine %q", cfg.Engine)
	}
}

func buildPolicy(name string) sg.Policy {
	switch name {
	case "local":
		return &policy.FixedPolicy{Backend: sg.BackendLocal}
	case "cloud":
		return &policy.FixedPolicy{Backend: sg.BackendCloud}
	default:
		return &policy.QuotaFirstPolicy{}
	}
}
