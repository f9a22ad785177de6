package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"xpost-studio/internal/domain"
)

const (
	memorySize   = 10_000
	memoryMaxTTL = 30 * 24 * time.Hour
)

// Open возвращает Redis кэш, если задан адрес, иначе кэш в памяти процесса.
func Open(ctx context.Context, logger zerolog.Logger, addr string) (domain.Cache, func(), error) {
	if addr == "" {
		logger.Info().Msg("cache: REDIS_ADDR не задан, используется память процесса")
		return NewMemory(memorySize, memoryMaxTTL), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("подключение к redis %s: %w", addr, err)
	}
	return NewRedis(client), func() { _ = client.Close() }, nil
}
