package docstore

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpost-studio/internal/infra/config"
)

func TestOpenMemory(t *testing.T) {
	var cfg config.AppConfig
	cfg.Store.Driver = "memory"

	store, closeFn, err := Open(context.Background(), zerolog.New(io.Discard), cfg)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &Memory{}, store)
	assert.NoError(t, store.EnsureSchema(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	var cfg config.AppConfig
	cfg.Store.Driver = "sqlite"

	_, _, err := Open(context.Background(), zerolog.New(io.Discard), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}
