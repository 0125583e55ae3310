package store

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeBankSource struct {
	banks []models.Bank
	err   error
	calls int
}

func (f *fakeBankSource) ActiveBanks(context.Context) ([]models.Bank, error) {
	f.calls++
	return f.banks, f.err
}

func testBanks() []models.Bank {
	return []models.Bank{{ID: 1, Name: "BBVA"}, {ID: 20, Name: "SFERA"}}
}

const testCacheTTL = 5 * time.Minute

// ==========================
// Cache Behaviour
// ==========================

func TestCachedBankCatalog_Hit(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	source := &fakeBankSource{}

	cached, err := json.Marshal(testBanks())
	require.NoError(t, err)
	redisMock.ExpectGet(BankCatalogCacheKey).SetVal(string(cached))

	catalog := NewCachedBankCatalog(source, redisClient, testCacheTTL, logger.NewTestLogger(t))
	banks, err := catalog.ActiveBanks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, testBanks(), banks)
	assert.Zero(t, source.calls)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCachedBankCatalog_Miss(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	source := &fakeBankSource{banks: testBanks()}

	data, err := json.Marshal(testBanks())
	require.NoError(t, err)
	redisMock.ExpectGet(BankCatalogCacheKey).RedisNil()
	redisMock.ExpectSet(BankCatalogCacheKey, data, testCacheTTL).SetVal("OK")

	catalog := NewCachedBankCatalog(source, redisClient, testCacheTTL, logger.NewTestLogger(t))
	banks, err := catalog.ActiveBanks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, testBanks(), banks)
	assert.Equal(t, 1, source.calls)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCachedBankCatalog_RedisDownFallsBackToSource(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	source := &fakeBankSource{banks: testBanks()}

	redisMock.ExpectGet(BankCatalogCacheKey).SetErr(errors.New("connection refused"))

	catalog := NewCachedBankCatalog(source, redisClient, testCacheTTL, logger.NewTestLogger(t))
	banks, err := catalog.ActiveBanks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, testBanks(), banks)
	assert.Equal(t, 1, source.calls)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCachedBankCatalog_SourceError(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	source := &fakeBankSource{err: errors.New("db down")}

	redisMock.ExpectGet(BankCatalogCacheKey).RedisNil()

	catalog := NewCachedBankCatalog(source, redisClient, testCacheTTL, logger.NewTestLogger(t))
	banks, err := catalog.ActiveBanks(context.Background())

	assert.Error(t, err)
	assert.Nil(t, banks)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCachedBankCatalog_RefreshReportsCacheWriteFailure(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	source := &fakeBankSource{banks: testBanks()}

	data, err := json.Marshal(testBanks())
	require.NoError(t, err)
	redisMock.ExpectSet(BankCatalogCacheKey, data, testCacheTTL).SetErr(errors.New("READONLY You can't write against a read only replica"))

	catalog := NewCachedBankCatalog(source, redisClient, testCacheTTL, logger.NewTestLogger(t))
	err = catalog.Refresh(context.Background())

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeCacheUnavailable, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCachedBankCatalog_RefreshOverwritesEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set(BankCatalogCacheKey, `[{"id":99,"name":"OLD"}]`))

	source := &fakeBankSource{banks: testBanks()}
	catalog := NewCachedBankCatalog(source, client, testCacheTTL, logger.NewTestLogger(t))

	require.NoError(t, catalog.Refresh(context.Background()))

	stored, err := mr.Get(BankCatalogCacheKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"BBVA"},{"id":20,"name":"SFERA"}]`, stored)
	assert.Equal(t, testCacheTTL, mr.TTL(BankCatalogCacheKey))

	banks, err := catalog.ActiveBanks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBanks(), banks)
	assert.Equal(t, 1, source.calls)
}

func TestCachedBankCatalog_UnreadableEntryIsReplaced(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set(BankCatalogCacheKey, "not-json"))

	source := &fakeBankSource{banks: testBanks()}
	catalog := NewCachedBankCatalog(source, client, testCacheTTL, logger.NewTestLogger(t))

	banks, err := catalog.ActiveBanks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBanks(), banks)
	assert.Equal(t, 1, source.calls)

	stored, err := mr.Get(BankCatalogCacheKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"BBVA"},{"id":20,"name":"SFERA"}]`, stored)
}
