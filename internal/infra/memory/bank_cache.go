package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"couple-quiz-service/internal/domain"
	"couple-quiz-service/internal/quizbank"
	"golang.org/x/sync/singleflight"
)

// BankCache caches the quiz bank document with a TTL so repeated day
// loads don't re-read the backing store.
type BankCache struct {
	loader quizbank.Loader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	bank      domain.Bank
	expiresAt time.Time
}

func NewBankCache(loader quizbank.Loader, ttl time.Duration) *BankCache {
	return &BankCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *BankCache) GetBank(ctx context.Context) (domain.Bank, error) {
	now := c.clock()

	c.mu.RLock()
	if c.bank.Days != nil && c.expiresAt.After(now) {
		bank := c.bank
		c.mu.RUnlock()
		return bank, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("bank", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.bank.Days != nil && c.expiresAt.After(now) {
			bank := c.bank
			c.mu.RUnlock()
			return bank, nil
		}
		c.mu.RUnlock()

		bank, err := c.loader.LoadBank(ctx)
		if err != nil {
			return domain.Bank{}, err
		}

		c.mu.Lock()
		c.bank = bank
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves a fixed bank from memory (tests/demos).
type StaticBankLoader struct {
	bank domain.Bank
}

func NewStaticBankLoader(bank domain.Bank) *StaticBankLoader {
	return &StaticBankLoader{bank: bank}
}

func (l *StaticBankLoader) LoadBank(_ context.Context) (domain.Bank, error) {
	if l.bank.Days == nil {
		return domain.Bank{}, domain.ErrBankUnavailable
	}
	return l.bank, nil
}
