package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"couple-quiz-service/internal/domain"
	"couple-quiz-service/internal/quizbank"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankCache caches the whole bank document in Redis (one JSON value
// with TTL) and falls back to a loader on cache miss. Useful when the
// bank lives in Postgres and several instances share one Redis.
type BankCache struct {
	client *redis.Client
	loader quizbank.Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewBankCache(client *redis.Client, loader quizbank.Loader, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const bankKey = "quizbank:days"

func (c *BankCache) GetBank(ctx context.Context) (domain.Bank, error) {
	if bank, ok := c.cached(ctx); ok {
		return bank, nil
	}

	result, err, _ := c.sf.Do(bankKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if bank, ok := c.cached(ctx); ok {
			return bank, nil
		}

		bank, err := c.loader.LoadBank(ctx)
		if err != nil {
			return domain.Bank{}, err
		}

		data, err := json.Marshal(bank)
		if err != nil {
			return domain.Bank{}, fmt.Errorf("encode bank: %w", err)
		}
		_ = c.client.Set(ctx, bankKey, data, c.ttlWithJitter()).Err()
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (c *BankCache) cached(ctx context.Context) (domain.Bank, bool) {
	raw, err := c.client.Get(ctx, bankKey).Bytes()
	if err != nil {
		return domain.Bank{}, false
	}
	var bank domain.Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return domain.Bank{}, false
	}
	return bank, true
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
