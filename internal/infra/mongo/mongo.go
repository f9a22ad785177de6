package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry-go"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Connect открывает клиента MongoDB и возвращает базу данных по имени.
func Connect(ctx context.Context, logger zerolog.Logger, uri, database string, attempts uint) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, nil, fmt.Errorf("создание клиента mongo: %w", err)
	}
	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return client.Ping(pingCtx, readpref.Primary())
		},
		retry.Attempts(attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().Err(err).Uint("attempt", n+1).Msg("mongo: повтор подключения")
		}),
	)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("подключение к mongo: %w", err)
	}
	return client, client.Database(database), nil
}
