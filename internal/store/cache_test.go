// internal/store/cache_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type countingStore struct {
	*MemoryStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	c.gets++
	return c.MemoryStore.Get(ctx, kind, filter)
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func newCachedTestStore(t *testing.T) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	rdb, mr := setupRedis(t)
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	cached := NewCachedStore(inner, rdb, time.Minute, logger.NewTestLogger(t), KindForm, KindAccount)
	return cached, inner, mr
}

// ==========================
// Read-Through Tests
// ==========================

func TestCachedStore_ReadThrough(t *testing.T) {
	cached, inner, mr := newCachedTestStore(t)
	ctx := context.Background()

	_, err := inner.MemoryStore.Create(ctx, KindForm, Document{"type": "Loan Application", "title": "Loan"})
	require.NoError(t, err)

	first, err := cached.Get(ctx, KindForm, Filter{"type": "Loan Application"})
	require.NoError(t, err)
	second, err := cached.Get(ctx, KindForm, Filter{"type": "Loan Application"})
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 1, inner.gets)
	assert.True(t, mr.Exists(`loan:cache:form:0:{"type":"Loan Application"}`))
}

func TestCachedStore_UncachedKindGoesToStore(t *testing.T) {
	cached, inner, _ := newCachedTestStore(t)
	ctx := context.Background()

	created, err := inner.MemoryStore.Create(ctx, KindLoan, Document{"status": "new"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := cached.Get(ctx, KindLoan, ByID(created.ID()))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.gets)
}

func TestCachedStore_MissIsNotCached(t *testing.T) {
	cached, inner, _ := newCachedTestStore(t)
	ctx := context.Background()

	_, err := cached.Get(ctx, KindForm, Filter{"type": "Loan Application"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = inner.MemoryStore.Create(ctx, KindForm, Document{"type": "Loan Application"})
	require.NoError(t, err)

	got, err := cached.Get(ctx, KindForm, Filter{"type": "Loan Application"})
	require.NoError(t, err)
	assert.Equal(t, "Loan Application", got["type"])
}

// ==========================
// Invalidation Tests
// ==========================

func TestCachedStore_WriteBumpsGeneration(t *testing.T) {
	cached, inner, mr := newCachedTestStore(t)
	ctx := context.Background()

	form, err := cached.Create(ctx, KindForm, Document{"type": "Loan Application", "title": "v1"})
	require.NoError(t, err)

	got, err := cached.Get(ctx, KindForm, ByID(form.ID()))
	require.NoError(t, err)
	assert.Equal(t, "v1", got["title"])

	_, err = cached.Update(ctx, KindForm, ByID(form.ID()), Document{"title": "v2"})
	require.NoError(t, err)

	got, err = cached.Get(ctx, KindForm, ByID(form.ID()))
	require.NoError(t, err)
	assert.Equal(t, "v2", got["title"])
	assert.Equal(t, 2, inner.gets)

	gen, err := mr.Get("loan:cache:gen:form")
	require.NoError(t, err)
	assert.Equal(t, "2", gen)
}

func TestCachedStore_TransactionWritesInvalidate(t *testing.T) {
	cached, _, mr := newCachedTestStore(t)
	ctx := context.Background()

	err := cached.RunInTx(ctx, func(tx Store) error {
		_, err := tx.Create(ctx, KindAccount, Document{"user": "u1"})
		return err
	})
	require.NoError(t, err)

	gen, err := mr.Get("loan:cache:gen:account")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
}

// ==========================
// Failure Fallthrough Tests
// ==========================

func TestCachedStore_RedisFailureFallsThrough(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	cached := NewCachedStore(inner, redisClient, time.Minute, logger.NewTestLogger(t), KindForm)
	ctx := context.Background()

	_, err := inner.MemoryStore.Create(ctx, KindForm, Document{"type": "Loan Application"})
	require.NoError(t, err)

	redisMock.ExpectGet("loan:cache:gen:form").SetErr(errors.New("connection refused"))

	got, err := cached.Get(ctx, KindForm, Filter{"type": "Loan Application"})
	require.NoError(t, err)
	assert.Equal(t, "Loan Application", got["type"])
	assert.Equal(t, 1, inner.gets)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCachedStore_CacheReadErrorStillServes(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	cached := NewCachedStore(inner, redisClient, time.Minute, logger.NewTestLogger(t), KindForm)
	ctx := context.Background()

	_, err := inner.MemoryStore.Create(ctx, KindForm, Document{"type": "Loan Application"})
	require.NoError(t, err)

	redisMock.ExpectGet("loan:cache:gen:form").RedisNil()
	redisMock.ExpectGet(`loan:cache:form:0:{"type":"Loan Application"}`).SetErr(errors.New("timeout"))

	got, err := cached.Get(ctx, KindForm, Filter{"type": "Loan Application"})
	require.NoError(t, err)
	assert.Equal(t, "Loan Application", got["type"])
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
