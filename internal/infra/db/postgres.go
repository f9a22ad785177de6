package db

import (
	"context"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Connect создаёт пул подключений к Postgres и дожидается ответа на ping.
func Connect(ctx context.Context, logger zerolog.Logger, dsn string, attempts uint) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("разбор PG_DSN: %w", err)
	}
	cfg.MaxConns = 5

	var pool *pgxpool.Pool
	err = retry.Do(
		func() error {
			connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			p, err := pgxpool.NewWithConfig(connectCtx, cfg)
			if err != nil {
				return err
			}
			if err := p.Ping(connectCtx); err != nil {
				p.Close()
				return err
			}
			pool = p
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().Err(err).Uint("attempt", n+1).Msg("postgres: повтор подключения")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("подключение к postgres: %w", err)
	}
	return pool, nil
}
