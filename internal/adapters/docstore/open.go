package docstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/config"
	"xpost-studio/internal/infra/db"
	mongoinfra "xpost-studio/internal/infra/mongo"
)

// Store — хранилище документов со служебными операциями.
type Store interface {
	domain.DocumentStore
	EnsureSchema(ctx context.Context) error
	CountByCollection(ctx context.Context) (map[string]int64, error)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Mongo)(nil)
	_ Store = (*Memory)(nil)
)

// Open подключает хранилище, выбранное в конфиге. closeFn освобождает соединения.
func Open(ctx context.Context, logger zerolog.Logger, cfg config.AppConfig) (store Store, closeFn func(), err error) {
	logger = logger.With().Str("component", "docstore").Str("driver", cfg.Store.Driver).Logger()
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, logger, cfg.PGDSN, cfg.Store.ConnRetry)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgres(pool), pool.Close, nil
	case "mongo":
		client, database, err := mongoinfra.Connect(ctx, logger, cfg.Store.MongoURI, cfg.Store.MongoDB, cfg.Store.ConnRetry)
		if err != nil {
			return nil, nil, err
		}
		return NewMongo(database), func() { _ = client.Disconnect(context.Background()) }, nil
	case "memory":
		logger.Warn().Msg("данные хранятся в памяти и пропадут при перезапуске")
		return NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный драйвер хранилища %q", cfg.Store.Driver)
	}
}
