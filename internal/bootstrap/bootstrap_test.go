// internal/bootstrap/bootstrap_test.go
package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/config"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/store"
	"loan-workers/pkg/registry"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "bootstrap-test"
	cfg.Database.Driver = DriverMemory
	cfg.Loan.TemplateCacheTTL = 60
	cfg.Loan.PermissionCacheTTL = 60
	return cfg
}

func TestOpen_MemoryStore(t *testing.T) {
	rt, err := Open(context.Background(), memoryConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	defer rt.Close()

	assert.IsType(t, &store.MemoryStore{}, rt.Store)
	assert.Nil(t, rt.Postgres)
	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.Elastic)
	assert.NotNil(t, rt.Service)

	_, ok := rt.Registry.Find(registry.TaskLoanCreate)
	assert.True(t, ok)
}

func TestOpen_RedisWrapsStoreWithCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := memoryConfig()
	cfg.Database.Redis.Enabled = true
	cfg.Database.Redis.Address = mr.Addr()

	rt, err := Open(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Redis)
	assert.IsType(t, &store.CachedStore{}, rt.Store)
}

func TestOpen_UnreachableRedisIsSkipped(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Redis.Enabled = true
	cfg.Database.Redis.Address = "127.0.0.1:1"

	rt, err := Open(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Redis)
	assert.IsType(t, &store.MemoryStore{}, rt.Store)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "mongo"

	_, err := Open(context.Background(), cfg, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown database driver "mongo"`)
}

func TestOpen_MissingRegistryFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.Registry.Path = "/nonexistent/registry.json"

	_, err := Open(context.Background(), cfg, logger.NewTestLogger(t))
	assert.Error(t, err)
}
