package store

import (
	"context"
	"errors"
	"time"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/models"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const BankCatalogCacheKey = "loan:banks:active"

// BankSource is the uncached catalog, normally the Repository.
type BankSource interface {
	ActiveBanks(ctx context.Context) ([]models.Bank, error)
}

// CachedBankCatalog keeps the active bank list in Redis. Redis failures fall
// back to the source so the cache never blocks an evaluation.
type CachedBankCatalog struct {
	source BankSource
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedBankCatalog(source BankSource, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedBankCatalog {
	return &CachedBankCatalog{
		source: source,
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "bank_catalog_cache"}),
	}
}

func (c *CachedBankCatalog) ActiveBanks(ctx context.Context) ([]models.Bank, error) {
	cached, err := c.redis.Get(ctx, BankCatalogCacheKey).Result()
	switch {
	case err == nil:
		var banks []models.Bank
		if jsonErr := json.Unmarshal([]byte(cached), &banks); jsonErr == nil {
			metrics.BankCatalogCache.WithLabelValues("hit").Inc()
			return banks, nil
		}
		c.logger.Warn("discarding unreadable cached bank catalog", nil)
		metrics.BankCatalogCache.WithLabelValues("miss").Inc()
	case errors.Is(err, redis.Nil):
		metrics.BankCatalogCache.WithLabelValues("miss").Inc()
	default:
		metrics.BankCatalogCache.WithLabelValues("error").Inc()
		c.logger.Warn("bank catalog cache unavailable, reading source", map[string]interface{}{
			"error": err.Error(),
		})
		return c.source.ActiveBanks(ctx)
	}

	banks, err := c.source.ActiveBanks(ctx)
	if err != nil {
		return nil, err
	}
	_ = c.store(ctx, banks)
	return banks, nil
}

// Refresh reloads the catalog from the source and overwrites the cache entry.
// A cache write failure is reported as CACHE_UNAVAILABLE.
func (c *CachedBankCatalog) Refresh(ctx context.Context) error {
	banks, err := c.source.ActiveBanks(ctx)
	if err != nil {
		return err
	}
	if err := c.store(ctx, banks); err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	c.logger.Info("bank catalog refreshed", map[string]interface{}{"banks": len(banks)})
	return nil
}

func (c *CachedBankCatalog) store(ctx context.Context, banks []models.Bank) error {
	data, err := json.Marshal(banks)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, BankCatalogCacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache bank catalog", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}
